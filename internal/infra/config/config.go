package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	AgentAPIKey     string // Shared secret the platform sends as api_key
	MedsengerHost   string // Base URL of the platform agent API
	HTTPAddr        string
	CORSOrigins     []string // Origins allowed to call the agent from a browser
	LogLevel        string
	Environment     string
	CronSpecTick    string        // Reconciliation cadence
	TickTimeout     time.Duration // Upper bound for a single reconciliation pass
	SinkTimeout     time.Duration // Upper bound for a single message delivery
	TimeZone        *time.Location
	SeedFile        string // Optional notification catalog applied on start
	TelegramToken   string // Optional admin bot
	AdminTelegramID int64
	RedisAddr       string // Optional scheduler lease
	RedisLeaseKey   string
	RedisLeaseTTL   time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.AgentAPIKey = os.Getenv("AGENT_API_KEY")
	if cfg.AgentAPIKey == "" {
		return nil, fmt.Errorf("AGENT_API_KEY is not set")
	}

	cfg.MedsengerHost = strings.TrimRight(os.Getenv("MEDSENGER_HOST"), "/")
	if cfg.MedsengerHost == "" {
		return nil, fmt.Errorf("MEDSENGER_HOST is not set")
	}

	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", ":9099")

	cfg.CORSOrigins = []string{cfg.MedsengerHost}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = strings.Split(raw, ",")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecTick = envOrDefault("CRON_SPEC_TICK", "@every 5m")

	if cfg.TickTimeout, err = durationEnv("TICK_TIMEOUT", 4*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SinkTimeout, err = durationEnv("SINK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.TimeZone = time.Local
	if tz := os.Getenv("TIME_ZONE"); tz != "" {
		cfg.TimeZone, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
		}
	}

	cfg.SeedFile = os.Getenv("SEED_FILE")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisLeaseKey = envOrDefault("REDIS_LEASE_KEY", "week_notification_agent:tick")
	if cfg.RedisLeaseTTL, err = durationEnv("REDIS_LEASE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
