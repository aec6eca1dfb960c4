package events

import (
	"time"

	"municipal/internal/capacity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultSpace = "Event booking"

type Event struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Title        string       `json:"title" gorm:"not null;size:200"`
	Date         string       `json:"date" gorm:"type:varchar(10);not null;index"`
	Time         string       `json:"time" gorm:"type:varchar(8);not null"`
	Venue        string       `json:"venue" gorm:"size:200"`
	Description  string       `json:"description" gorm:"type:text"`
	Status       EventStatus  `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	CapacityMode CapacityMode `json:"capacity_mode" gorm:"type:varchar(10);not null;default:'general'"`
	TotalQuota   int          `json:"total_quota" gorm:"not null;default:0"`

	CreatedBy string    `json:"created_by" gorm:"size:150"`
	UpdatedBy string    `json:"updated_by" gorm:"size:150"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CapacityRef is the allocator's view of the event
func (e *Event) CapacityRef() *capacity.EventRef {
	return &capacity.EventRef{ID: e.ID, Mode: e.CapacityMode, Quota: e.TotalQuota}
}

// DefaultSpace names the space a booking occupies when none is given
func (e *Event) DefaultSpace() string {
	switch {
	case e.Venue != "":
		return e.Venue
	case e.Title != "":
		return e.Title
	default:
		return defaultSpace
	}
}

// Zone is a named sub-allocation of an event's capacity
type Zone struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_event_zones_event_name"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_event_zones_event_name"`
	Quota     int       `json:"quota" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Zone) TableName() string {
	return "event_zones"
}

func (z *Zone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}

func (z *Zone) CapacityRef() *capacity.ZoneRef {
	return &capacity.ZoneRef{ID: z.ID, EventID: z.EventID, Quota: z.Quota}
}

type EventResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date"`
	Time         string         `json:"time"`
	Venue        string         `json:"venue"`
	Description  string         `json:"description"`
	Status       EventStatus    `json:"status"`
	CapacityMode CapacityMode   `json:"capacity_mode"`
	TotalQuota   int            `json:"total_quota"`
	Zones        []ZoneResponse `json:"zones,omitempty"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type ZoneResponse struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Quota   int    `json:"quota"`
}

type CreateEventRequest struct {
	Title        string `json:"title" binding:"required,min=3,max=200"`
	Date         string `json:"date" binding:"required,isodate"`
	Time         string `json:"time" binding:"required,clock"`
	Venue        string `json:"venue" binding:"max=200"`
	Description  string `json:"description" binding:"max=2000"`
	Status       string `json:"status" binding:"omitempty,oneof=draft open_call confirmed"`
	CapacityMode string `json:"capacity_mode" binding:"omitempty,oneof=general zones"`
	TotalQuota   int    `json:"total_quota" binding:"min=0"`
}

type UpdateEventRequest struct {
	Title        *string `json:"title" binding:"omitempty,min=3,max=200"`
	Date         *string `json:"date" binding:"omitempty,isodate"`
	Time         *string `json:"time" binding:"omitempty,clock"`
	Venue        *string `json:"venue" binding:"omitempty,max=200"`
	Description  *string `json:"description" binding:"omitempty,max=2000"`
	Status       *string `json:"status" binding:"omitempty,oneof=draft open_call confirmed"`
	CapacityMode *string `json:"capacity_mode" binding:"omitempty,oneof=general zones"`
	TotalQuota   *int    `json:"total_quota" binding:"omitempty,min=0"`
}

type EventListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=draft open_call confirmed"`
	DateFrom string `form:"date_from" binding:"omitempty,isodate"`
	DateTo   string `form:"date_to" binding:"omitempty,isodate"`
}

type CreateZoneRequest struct {
	Name  string `json:"name" binding:"required,min=2,max=100"`
	Quota int    `json:"quota" binding:"min=0"`
}

type UpdateZoneRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=100"`
	Quota *int    `json:"quota" binding:"omitempty,min=0"`
}

func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:           e.ID.String(),
		Title:        e.Title,
		Date:         e.Date,
		Time:         e.Time,
		Venue:        e.Venue,
		Description:  e.Description,
		Status:       e.Status,
		CapacityMode: e.CapacityMode,
		TotalQuota:   e.TotalQuota,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (z *Zone) ToResponse() ZoneResponse {
	return ZoneResponse{
		ID:      z.ID.String(),
		EventID: z.EventID.String(),
		Name:    z.Name,
		Quota:   z.Quota,
	}
}
