package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	TypeBookingCreated       NotificationType = "booking.created"
	TypeBookingUpdated       NotificationType = "booking.updated"
	TypeBookingStatusChanged NotificationType = "booking.status_changed"
	TypeBookingDeleted       NotificationType = "booking.deleted"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeBookingCreated, TypeBookingUpdated, TypeBookingStatusChanged, TypeBookingDeleted:
		return true
	default:
		return false
	}
}

// Notification is a booking lifecycle message
type Notification struct {
	ID             uuid.UUID        `json:"id"`
	Type           NotificationType `json:"type"`
	BookingID      uuid.UUID        `json:"booking_id"`
	BookingCode    string           `json:"booking_code"`
	EventID        uuid.UUID        `json:"event_id"`
	ZoneID         *uuid.UUID       `json:"zone_id,omitempty"`
	Requester      string           `json:"requester"`
	Status         string           `json:"status"`
	PreviousStatus string           `json:"previous_status,omitempty"`
	RequestedUnits int              `json:"requested_units"`
	Actor          string           `json:"actor"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// New stamps a notification of type t with a fresh id and the current time
func New(t NotificationType) *Notification {
	return &Notification{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

// GetPartitionKey keeps every message of one event on one partition
func (n *Notification) GetPartitionKey() string {
	return n.EventID.String()
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// Record is a delivered notification kept for the history endpoint
type Record struct {
	ID             uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	NotificationID uuid.UUID        `json:"notification_id" gorm:"type:uuid;not null;uniqueIndex"`
	Type           NotificationType `json:"type" gorm:"type:varchar(40);not null;index"`
	BookingID      uuid.UUID        `json:"booking_id" gorm:"type:uuid;not null;index"`
	BookingCode    string           `json:"booking_code" gorm:"type:varchar(12);index"`
	EventID        uuid.UUID        `json:"event_id" gorm:"type:uuid;not null"`
	Requester      string           `json:"requester" gorm:"size:150"`
	Status         string           `json:"status" gorm:"type:varchar(20)"`
	PreviousStatus string           `json:"previous_status,omitempty" gorm:"type:varchar(20)"`
	RequestedUnits int              `json:"requested_units"`
	Actor          string           `json:"actor" gorm:"size:150"`
	OccurredAt     time.Time        `json:"occurred_at" gorm:"not null;index"`
	RecordedAt     time.Time        `json:"recorded_at" gorm:"autoCreateTime"`
}

func (Record) TableName() string {
	return "notification_records"
}

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RecordFrom copies a notification into a history row
func RecordFrom(n *Notification) *Record {
	return &Record{
		NotificationID: n.ID,
		Type:           n.Type,
		BookingID:      n.BookingID,
		BookingCode:    n.BookingCode,
		EventID:        n.EventID,
		Requester:      n.Requester,
		Status:         n.Status,
		PreviousStatus: n.PreviousStatus,
		RequestedUnits: n.RequestedUnits,
		Actor:          n.Actor,
		OccurredAt:     n.OccurredAt,
	}
}

type HistoryQuery struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	BookingCode string `form:"booking_code" binding:"omitempty,len=12,alphanum,lowercase"`
	Type        string `form:"type" binding:"omitempty,oneof=booking.created booking.updated booking.status_changed booking.deleted"`
}
