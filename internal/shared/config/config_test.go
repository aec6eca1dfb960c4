package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, ":8080", cfg.GetServerAddress())
	assert.True(t, cfg.Booking.ReleaseCancelled)
	assert.Equal(t, 5, cfg.Booking.CodeAttempts)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN, "dbname=municipal_db")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/municipal.db")
	t.Setenv("BOOKING_RELEASE_CANCELLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("DASHBOARD_CACHE_TTL", "30s")
	t.Setenv("JWT_EXPIRES_IN", "120")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.GetServerAddress())
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/municipal.db", cfg.Database.DSN)
	assert.False(t, cfg.Booking.ReleaseCancelled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Redis.DashboardTTL)
	assert.Equal(t, 2*time.Minute, cfg.JWT.JWTExpiresIn)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("BOOKING_CODE_ATTEMPTS", "many")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")
	t.Setenv("READ_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.Booking.CodeAttempts)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}
