// Package config loads service settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPort           = 5200
	DefaultPageSize       = 15
	DefaultMaxPageSize    = 100
	DefaultAllowedOrigins = "http://localhost:3000"
)

// Config holds every setting the server and its workers read at startup.
type Config struct {
	DatabaseURL    string
	Port           int
	AllowedOrigins []string
	ServiceToken   string

	PageSize    int
	MaxPageSize int

	RedisAddress   string
	RedisPassword  string
	OGCacheTTL     time.Duration
	OGFetchTimeout time.Duration

	R2 R2Config

	ProfileSyncURL      string
	ProfileSyncInterval time.Duration
	SchedulerInterval   time.Duration

	LogLevel       string
	LogDevelopment bool
}

// R2Config is the Cloudflare R2 (S3 compatible) bucket used for sponsor assets.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough of R2 is configured to upload objects.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("ALLOWED_ORIGINS", DefaultAllowedOrigins)
	v.SetDefault("PAGE_SIZE", DefaultPageSize)
	v.SetDefault("MAX_PAGE_SIZE", DefaultMaxPageSize)
	v.SetDefault("OG_CACHE_TTL", 24*time.Hour)
	v.SetDefault("OG_FETCH_TIMEOUT", 10*time.Second)
	v.SetDefault("PROFILE_SYNC_INTERVAL", time.Minute)
	v.SetDefault("SCHEDULER_INTERVAL", time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)

	// AutomaticEnv only sees keys viper already knows about
	for _, key := range []string{
		"DATABASE_URL", "SERVICE_TOKEN", "REDIS_ADDRESS", "REDIS_PASSWORD",
		"CLOUDFLARE_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_SECRET", "R2_BUCKET_NAME",
		"CDN_BASE_URL", "PROFILE_SYNC_URL",
	} {
		v.SetDefault(key, "")
	}
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		DatabaseURL:    v.GetString("DATABASE_URL"),
		Port:           v.GetInt("PORT"),
		AllowedOrigins: splitOrigins(v.GetString("ALLOWED_ORIGINS")),
		ServiceToken:   v.GetString("SERVICE_TOKEN"),
		PageSize:       v.GetInt("PAGE_SIZE"),
		MaxPageSize:    v.GetInt("MAX_PAGE_SIZE"),
		RedisAddress:   v.GetString("REDIS_ADDRESS"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		OGCacheTTL:     v.GetDuration("OG_CACHE_TTL"),
		OGFetchTimeout: v.GetDuration("OG_FETCH_TIMEOUT"),
		R2: R2Config{
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			CDNBaseURL:      v.GetString("CDN_BASE_URL"),
		},
		ProfileSyncURL:      v.GetString("PROFILE_SYNC_URL"),
		ProfileSyncInterval: v.GetDuration("PROFILE_SYNC_INTERVAL"),
		SchedulerInterval:   v.GetDuration("SCHEDULER_INTERVAL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogDevelopment:      v.GetBool("LOG_DEVELOPMENT"),
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.MaxPageSize < c.PageSize {
		errs = append(errs, fmt.Errorf("MAX_PAGE_SIZE (%d) must be >= PAGE_SIZE (%d)", c.MaxPageSize, c.PageSize))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	return errors.Join(errs...)
}

// ListenAddr is the address Fiber listens on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AllowedOriginsHeader joins the origins the way Fiber's CORS middleware expects.
func (c *Config) AllowedOriginsHeader() string {
	return strings.Join(c.AllowedOrigins, ",")
}
