package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultAppName           = "VeltaPay"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultCurrency          = "usd"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultGatewayTimeout    = 10 * time.Second
	defaultNotifyTimeout     = 5 * time.Second
	defaultReconcileInterval = time.Minute
	defaultPendingTTL        = 15 * time.Minute
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string
	Currency string

	DatabaseURL string
	RedisURL    string

	GatewayBaseURL      string
	GatewayClientID     string
	GatewayClientSecret string
	GatewayTimeout      time.Duration

	NotifyURL     string
	NotifyTimeout time.Duration

	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	ReconcileInterval time.Duration
	PendingTTL        time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Currency:            strings.ToLower(getEnv("WALLET_CURRENCY", defaultCurrency)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		GatewayBaseURL:      os.Getenv("GATEWAY_BASE_URL"),
		GatewayClientID:     os.Getenv("GATEWAY_CLIENT_ID"),
		GatewayClientSecret: os.Getenv("GATEWAY_CLIENT_SECRET"),
		NotifyURL:           os.Getenv("NOTIFY_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		GatewayTimeout:      defaultGatewayTimeout,
		NotifyTimeout:       defaultNotifyTimeout,
		ReconcileInterval:   defaultReconcileInterval,
		PendingTTL:          defaultPendingTTL,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.GatewayTimeout, err = durationEnv("GATEWAY_TIMEOUT", cfg.GatewayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.NotifyTimeout, err = durationEnv("NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return Config{}, err
	}
	if cfg.PendingTTL, err = durationEnv("PENDING_TTL", cfg.PendingTTL); err != nil {
		return Config{}, err
	}

	// Outside of dev every external collaborator must be configured. In dev
	// the service falls back to in-memory backends and the static gateway.
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.GatewayBaseURL == "" {
			return Config{}, fmt.Errorf("GATEWAY_BASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
