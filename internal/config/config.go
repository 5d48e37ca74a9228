package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting the server reads at startup
type Config struct {
	DBConnStr string
	Store     string // "postgres" or "memory"
	Port      string
	APIToken  string
	LogLevel  string
	Env       string

	RedisAddr     string // empty disables the cross-process reconcile lease
	RedisPassword string

	FastInterval        time.Duration
	SweepInterval       time.Duration
	MaintenanceInterval time.Duration
	NoticeRetention     time.Duration
}

const defaultAPIToken = "dev-token"

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present (Docker friendly).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store:         getEnv("STORE_BACKEND", "postgres"),
		Port:          getEnv("SERVER_PORT", "8080"),
		APIToken:      getEnv("API_TOKEN", defaultAPIToken),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Env:           getEnv("ENVIRONMENT", "development"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", cfg.Store)
	}

	// A typo'd cadence must fail startup, not silently run on defaults
	var err error
	if cfg.FastInterval, err = getDuration("RECONCILE_FAST_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("RECONCILE_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaintenanceInterval, err = getDuration("MAINTENANCE_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.NoticeRetention, err = getDuration("NOTICE_RETENTION", 180*24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Store == "postgres" {
		cfg.DBConnStr = os.Getenv("DB_CONN_STR")
		if cfg.DBConnStr == "" {
			// Build it from individual vars when the explicit string is missing
			cfg.DBConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				getEnv("DB_HOST", "localhost"),
				getEnv("DB_PORT", "5432"),
				getEnv("DB_USER", "postgres"),
				getEnv("DB_PASSWORD", "postgres"),
				getEnv("DB_NAME", "fundflow"),
			)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}
