package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8839", cfg.MemosURL)
	assert.Equal(t, 5*time.Minute, cfg.CaptureInterval)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CAPTURE_INTERVAL", "2m")
	t.Setenv("BREAKER_THRESHOLD", "5")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2*time.Minute, cfg.CaptureInterval)
	assert.Equal(t, 5, cfg.BreakerThreshold)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("BREAKER_THRESHOLD", "lots")
	t.Setenv("CAPTURE_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.BreakerThreshold)
	assert.Equal(t, 5*time.Minute, cfg.CaptureInterval)
}
