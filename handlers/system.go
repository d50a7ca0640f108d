// handlers/system.go
package handlers

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"bounty-listing-system/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"gorm.io/gorm"
)

//go:embed assets
var assets embed.FS

const healthTimeout = 2 * time.Second

// SetupSystemRoutes mounts /healthz, /metrics and the static /assets tree.
func SetupSystemRoutes(app *fiber.App, db *gorm.DB, metrics *middleware.Metrics) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if metrics != nil {
		app.Get("/metrics", metrics.Handler())
	}

	static, _ := fs.Sub(assets, "assets")
	app.Use("/assets", filesystem.New(filesystem.Config{
		Root:   http.FS(static),
		MaxAge: 86400,
	}))
}
