package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bounty-listing-system/config"
	"bounty-listing-system/handlers"
	"bounty-listing-system/logger"
	"bounty-listing-system/middleware"
	"bounty-listing-system/models"
	"bounty-listing-system/services"
	"bounty-listing-system/utils"
	"bounty-listing-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var ogCache services.OGCache
	if cfg.RedisAddress != "" {
		redisClient, err := utils.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, OG cache disabled", logger.Error(err))
		} else {
			defer redisClient.Close()
			ogCache = &services.RedisOGCache{Client: redisClient}
		}
	}

	var uploader services.Uploader
	if cfg.R2.Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		uploader = store
	} else {
		log.Info("R2 not configured, sponsor logo uploads disabled")
	}

	bountyService := services.NewBountyService(db, log, cfg.PageSize, cfg.MaxPageSize)
	submissionService := services.NewSubmissionService(db, log)
	sponsorService := services.NewSponsorService(db, log, uploader)
	ogService := services.NewOGService(utils.NewHTTPClient(cfg.OGFetchTimeout), ogCache, cfg.OGCacheTTL, log)
	scheduler := services.NewPublishScheduler(db, log, cfg.SchedulerInterval)

	metrics := middleware.NewMetrics()
	app := newApp(cfg, log, metrics)
	handlers.SetupSystemRoutes(app, db, metrics)
	api := handlers.NewAPIRouter(app)
	handlers.SetupBountyRoutes(api, bountyService, submissionService)
	handlers.SetupSponsorRoutes(api, sponsorService, ogService)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", logger.String("addr", cfg.ListenAddr()), logger.String("origins", cfg.AllowedOriginsHeader()))
		return app.Listen(cfg.ListenAddr())
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if cfg.ProfileSyncURL != "" {
		syncWorker := workers.NewUserSyncWorker(db, log, cfg.ProfileSyncURL, cfg.ServiceToken, cfg.ProfileSyncInterval)
		g.Go(func() error {
			return syncWorker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newApp(cfg *config.Config, log logger.Logger, metrics *middleware.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "bounty-listing-system",
		BodyLimit:             8 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestLogger(log))
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOriginsHeader(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.GatewayAuth(cfg.ServiceToken, log, "/healthz", "/metrics", "/assets"))

	return app
}
