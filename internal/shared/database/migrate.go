package database

import (
	"fmt"

	"municipal/internal/bookings"
	"municipal/internal/events"
	"municipal/internal/notifications"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&events.Event{},
		&events.Zone{},
		&bookings.Booking{},
		&notifications.Record{},
	); err != nil {
		return err
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds the composite indexes the capacity sums and listings
// rely on
func EnsureIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_bookings_capacity ON bookings (event_id, zone_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_schedule ON bookings (date, time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_schedule ON events (date, time)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
