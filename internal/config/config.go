// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Config struct {
	Port         string
	DatabaseDSN  string
	RedisAddr    string
	MemosURL     string
	MemosTimeout time.Duration

	SweepInterval   time.Duration
	CaptureInterval time.Duration

	BreakerThreshold int
	BreakerCoolDown  time.Duration

	AlertAPIKey      string
	AlertFromName    string
	AlertFromAddress string
	AlertTo          string

	ReportOutputPath string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}

	return Config{
		Port:         envString("PORT", "8080"),
		DatabaseDSN:  envString("DATABASE_DSN", "database.db"),
		RedisAddr:    envString("REDIS_ADDR", ""),
		MemosURL:     envString("MEMOS_URL", "http://localhost:8839"),
		MemosTimeout: envDuration("MEMOS_TIMEOUT", 5*time.Second),

		SweepInterval:   envDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		CaptureInterval: envDuration("CAPTURE_INTERVAL", 5*time.Minute),

		BreakerThreshold: envInt("BREAKER_THRESHOLD", 0),
		BreakerCoolDown:  envDuration("BREAKER_COOLDOWN", 0),

		AlertAPIKey:      envString("EMAIL_API_KEY", ""),
		AlertFromName:    envString("FROM_NAME", "Retrace"),
		AlertFromAddress: envString("FROM_ADDRESS", ""),
		AlertTo:          envString("ALERT_TO", ""),

		ReportOutputPath: envString("REPORT_OUTPUT_PATH", "./reports"),
	}
}

// OpenDB opens the activity database. Postgres-style DSNs go through
// lib/pq; anything else is treated as a sqlite file path.
func OpenDB(dsn string) (*sql.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return value
}
