package dashboard

import (
	"context"

	"municipal/internal/bookings"
	"municipal/internal/events"

	"gorm.io/gorm"
)

type Repository interface {
	UpcomingEvents(ctx context.Context, from string, limit int) ([]events.Event, error)
	// UpcomingBookings lists bookings dated from onwards; an empty requester
	// means every requester
	UpcomingBookings(ctx context.Context, from, requester string, limit int) ([]bookings.Booking, error)
	CountEvents(ctx context.Context) (int64, error)
	BookingsByStatus(ctx context.Context, requester string) ([]StatusCount, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) UpcomingEvents(ctx context.Context, from string, limit int) ([]events.Event, error) {
	var upcoming []events.Event
	err := r.db.WithContext(ctx).
		Where("date >= ?", from).
		Order("date ASC").Order("time ASC").
		Limit(limit).
		Find(&upcoming).Error
	return upcoming, err
}

func (r *repository) UpcomingBookings(ctx context.Context, from, requester string, limit int) ([]bookings.Booking, error) {
	db := r.db.WithContext(ctx).Preload("Event").Where("date >= ?", from)
	if requester != "" {
		db = db.Where("requester = ?", requester)
	}

	var upcoming []bookings.Booking
	err := db.Order("date ASC").Order("time ASC").Limit(limit).Find(&upcoming).Error
	return upcoming, err
}

func (r *repository) CountEvents(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&events.Event{}).Count(&total).Error
	return total, err
}

func (r *repository) BookingsByStatus(ctx context.Context, requester string) ([]StatusCount, error) {
	db := r.db.WithContext(ctx).Model(&bookings.Booking{})
	if requester != "" {
		db = db.Where("requester = ?", requester)
	}

	var rows []StatusCount
	err := db.Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error
	return rows, err
}
