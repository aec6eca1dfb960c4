package bookings

import (
	"context"
	"strings"

	"municipal/internal/capacity"
	"municipal/internal/shared/txn"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Transaction runs fn in a transaction carried by the returned context
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Core booking operations
	Create(ctx context.Context, booking *Booking) error
	Update(ctx context.Context, booking *Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByIDWithRelations(ctx context.Context, id uuid.UUID) (*Booking, error)
	LockBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	// Listings
	List(ctx context.Context, filter ListFilter) ([]Booking, int64, error)
	ListAll(ctx context.Context, filter ListFilter) ([]Booking, error)

	// Capacity ledger
	CommittedUnits(ctx context.Context, q capacity.Query) (int, error)
	CountHolding(ctx context.Context, eventID uuid.UUID, skipReleased bool) (int64, error)

	// Event bookkeeping
	UpdateSchedule(ctx context.Context, eventID uuid.UUID, date, clock string) error
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
	DeleteByZone(ctx context.Context, zoneID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.WithTx(ctx, r.db, fn)
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	return txn.Conn(ctx, r.db).Omit(clause.Associations).Create(booking).Error
}

func (r *repository) Update(ctx context.Context, booking *Booking) error {
	return txn.Conn(ctx, r.db).Omit(clause.Associations).Save(booking).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("id = ?", id).Delete(&Booking{}).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	if err := txn.Conn(ctx, r.db).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByIDWithRelations(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := txn.Conn(ctx, r.db).
		Preload("Event").
		Preload("Zone").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) LockBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := txn.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := txn.Conn(ctx, r.db).Model(&Booking{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *repository) filtered(ctx context.Context, filter ListFilter) *gorm.DB {
	db := txn.Conn(ctx, r.db).Model(&Booking{})

	if filter.EventID != nil {
		db = db.Where("event_id = ?", *filter.EventID)
	}
	if filter.ZoneID != nil {
		db = db.Where("zone_id = ?", *filter.ZoneID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Requester != "" {
		db = db.Where("requester = ?", filter.Requester)
	}
	if filter.Search != "" {
		searchTerm := "%" + strings.ToLower(filter.Search) + "%"
		db = db.Where("LOWER(space) LIKE ? OR LOWER(code) LIKE ?", searchTerm, searchTerm)
	}
	if filter.DateFrom != "" {
		db = db.Where("date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		db = db.Where("date <= ?", filter.DateTo)
	}
	return db
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	db := r.filtered(ctx, filter)
	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Event").Preload("Zone").
		Order("date DESC").Order("time DESC").Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&bookings).Error
	return bookings, totalCount, err
}

func (r *repository) ListAll(ctx context.Context, filter ListFilter) ([]Booking, error) {
	var bookings []Booking
	err := r.filtered(ctx, filter).
		Preload("Event").Preload("Zone").
		Order("date DESC").Order("time DESC").Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// CommittedUnits sums the units held against q.Target
func (r *repository) CommittedUnits(ctx context.Context, q capacity.Query) (int, error) {
	db := txn.Conn(ctx, r.db).Model(&Booking{}).Where("event_id = ?", q.Target.EventID)

	if q.Target.ZoneID != nil {
		db = db.Where("zone_id = ?", *q.Target.ZoneID)
	} else {
		db = db.Where("zone_id IS NULL")
	}
	if q.ExcludeID != nil {
		db = db.Where("id <> ?", *q.ExcludeID)
	}
	if q.SkipReleased {
		db = db.Where("status <> ?", StatusCancelled)
	}

	var total int64
	if err := db.Select("COALESCE(SUM(requested_units), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repository) CountHolding(ctx context.Context, eventID uuid.UUID, skipReleased bool) (int64, error) {
	db := txn.Conn(ctx, r.db).Model(&Booking{}).Where("event_id = ?", eventID)
	if skipReleased {
		db = db.Where("status <> ?", StatusCancelled)
	}

	var count int64
	err := db.Count(&count).Error
	return count, err
}

func (r *repository) UpdateSchedule(ctx context.Context, eventID uuid.UUID, date, clock string) error {
	return txn.Conn(ctx, r.db).Model(&Booking{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{"date": date, "time": clock}).Error
}

func (r *repository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("event_id = ?", eventID).Delete(&Booking{}).Error
}

func (r *repository) DeleteByZone(ctx context.Context, zoneID uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("zone_id = ?", zoneID).Delete(&Booking{}).Error
}

