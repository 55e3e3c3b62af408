package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Toss      TossConfig
	Checkout  CheckoutConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Addr        string
	CORSOrigins string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret string
}

type TossConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type CheckoutConfig struct {
	// ConfirmDelay paces the redirect landing before confirmation starts.
	ConfirmDelay time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from environment variables.
func Load() Config {
	cfg := Config{
		Server: ServerConfig{
			Addr:        os.Getenv("STOREFRONT_ADDR"),
			CORSOrigins: os.Getenv("CORS_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 0),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 0),
		},
		JWT: JWTConfig{Secret: os.Getenv("JWT_SECRET")},
		Toss: TossConfig{
			SecretKey: os.Getenv("TOSS_SECRET_KEY"),
			BaseURL:   os.Getenv("TOSS_BASE_URL"),
			Timeout:   envDuration("TOSS_TIMEOUT", 0),
		},
		Checkout: CheckoutConfig{
			ConfirmDelay: envDuration("CHECKOUT_CONFIRM_DELAY", -1),
		},
		Log: LogConfig{
			Level:      os.Getenv("LOG_LEVEL"),
			Format:     os.Getenv("LOG_FORMAT"),
			Output:     os.Getenv("LOG_OUTPUT"),
			FilePath:   os.Getenv("LOG_FILE"),
			MaxSize:    envInt("LOG_MAX_SIZE", 0),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 0),
			MaxAge:     envInt("LOG_MAX_AGE", 0),
		},
		RateLimit: RateLimitConfig{
			RPS:   envFloat("RATE_LIMIT_RPS", 0),
			Burst: envInt("RATE_LIMIT_BURST", 0),
		},
	}
	if cfg.Server.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}
	applyDefaults(&cfg)
	return cfg
}

// Validate reports the settings the API server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Toss.SecretKey == "" {
		missing = append(missing, "TOSS_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// applyDefaults fills zero values so an empty environment still yields a runnable config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.CORSOrigins == "" {
		cfg.Server.CORSOrigins = "*"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Toss.BaseURL == "" {
		cfg.Toss.BaseURL = "https://api.tosspayments.com/v1/"
	}
	if cfg.Toss.Timeout <= 0 {
		cfg.Toss.Timeout = 10 * time.Second
	}
	if cfg.Checkout.ConfirmDelay < 0 {
		cfg.Checkout.ConfirmDelay = 2 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.FilePath == "" {
		cfg.Log.FilePath = "logs/storefront.log"
	}
	if cfg.Log.MaxSize <= 0 {
		cfg.Log.MaxSize = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 7
	}
	if cfg.Log.MaxAge <= 0 {
		cfg.Log.MaxAge = 28
	}
	if cfg.RateLimit.RPS <= 0 {
		cfg.RateLimit.RPS = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

// envDuration accepts Go duration strings ("1500ms") or plain milliseconds.
func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
