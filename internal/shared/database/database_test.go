package database

import (
	"context"
	"testing"

	"municipal/internal/bookings"
	"municipal/internal/events"
	"municipal/internal/notifications"
	"municipal/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, false)
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestInitDB_SQLite(t *testing.T) {
	cfg := &config.Config{
		GinMode:  "test",
		Database: config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"},
	}

	db, err := InitDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Nil(t, db.Redis)
	assert.NoError(t, db.HealthCheck(context.Background()))

	migrator := db.SQL.Migrator()
	for _, model := range []interface{}{&events.Event{}, &events.Zone{}, &bookings.Booking{}, &notifications.Record{}} {
		assert.True(t, migrator.HasTable(model))
	}
	assert.True(t, migrator.HasIndex(&bookings.Booking{}, "idx_bookings_capacity"))
	assert.True(t, migrator.HasIndex(&events.Event{}, "idx_events_schedule"))

	// migrations are idempotent
	assert.NoError(t, Migrate(db.SQL))
}
