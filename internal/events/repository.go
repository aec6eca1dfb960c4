package events

import (
	"context"
	"strings"

	"municipal/internal/shared/txn"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Transaction runs fn in a transaction carried by the returned context
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	LockEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error)

	ListZones(ctx context.Context, eventID uuid.UUID) ([]Zone, error)
	GetZone(ctx context.Context, id uuid.UUID) (*Zone, error)
	LockZone(ctx context.Context, id uuid.UUID) (*Zone, error)
	CreateZone(ctx context.Context, zone *Zone) error
	UpdateZone(ctx context.Context, zone *Zone) error
	DeleteZone(ctx context.Context, id uuid.UUID) error
	DeleteZonesByEvent(ctx context.Context, eventID uuid.UUID) error
	ZoneNameExists(ctx context.Context, eventID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, event *Event) error {
	return txn.Conn(ctx, r.db).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	if err := txn.Conn(ctx, r.db).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// LockEvent reads the event with SELECT ... FOR UPDATE. Outside a transaction
// the lock is released as soon as the statement ends.
func (r *repository) LockEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := txn.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, event *Event) error {
	return txn.Conn(ctx, r.db).Save(event).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("id = ?", id).Delete(&Event{}).Error
}

func (r *repository) GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	var events []Event
	var totalCount int64

	db := txn.Conn(ctx, r.db).Model(&Event{})

	if query.Search != "" {
		searchTerm := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(venue) LIKE ?",
			searchTerm, searchTerm, searchTerm)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	// ISO dates compare correctly as strings
	if query.DateFrom != "" {
		db = db.Where("date >= ?", query.DateFrom)
	}
	if query.DateTo != "" {
		db = db.Where("date <= ?", query.DateTo)
	}

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := db.Order("date ASC").Order("time ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&events).Error

	return events, totalCount, err
}

func (r *repository) ListZones(ctx context.Context, eventID uuid.UUID) ([]Zone, error) {
	var zones []Zone
	err := txn.Conn(ctx, r.db).Where("event_id = ?", eventID).Order("name ASC").Find(&zones).Error
	return zones, err
}

func (r *repository) GetZone(ctx context.Context, id uuid.UUID) (*Zone, error) {
	var zone Zone
	if err := txn.Conn(ctx, r.db).Where("id = ?", id).First(&zone).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *repository) LockZone(ctx context.Context, id uuid.UUID) (*Zone, error) {
	var zone Zone
	err := txn.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&zone).Error
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *repository) CreateZone(ctx context.Context, zone *Zone) error {
	return txn.Conn(ctx, r.db).Create(zone).Error
}

func (r *repository) UpdateZone(ctx context.Context, zone *Zone) error {
	return txn.Conn(ctx, r.db).Save(zone).Error
}

func (r *repository) DeleteZone(ctx context.Context, id uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("id = ?", id).Delete(&Zone{}).Error
}

func (r *repository) DeleteZonesByEvent(ctx context.Context, eventID uuid.UUID) error {
	return txn.Conn(ctx, r.db).Where("event_id = ?", eventID).Delete(&Zone{}).Error
}

func (r *repository) ZoneNameExists(ctx context.Context, eventID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	db := txn.Conn(ctx, r.db).Model(&Zone{}).
		Where("event_id = ? AND LOWER(name) = ?", eventID, strings.ToLower(name))
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
