package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Save stores a record once; redelivered notifications are ignored
	Save(ctx context.Context, record *Record) error
	List(ctx context.Context, query HistoryQuery) ([]Record, int64, error)
	Exists(ctx context.Context, notificationID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Save(ctx context.Context, record *Record) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (r *repository) List(ctx context.Context, query HistoryQuery) ([]Record, int64, error) {
	var records []Record
	var total int64

	db := r.db.WithContext(ctx).Model(&Record{})
	if query.BookingCode != "" {
		db = db.Where("booking_code = ?", query.BookingCode)
	}
	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("occurred_at DESC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&records).Error
	return records, total, err
}

func (r *repository) Exists(ctx context.Context, notificationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("notification_id = ?", notificationID).
		Count(&count).Error
	return count > 0, err
}
