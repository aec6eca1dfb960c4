package bookings

import (
	"time"

	"municipal/internal/capacity"
	"municipal/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking reserves units of an event's capacity, or of one of its zones
type Booking struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string     `gorm:"type:varchar(12);uniqueIndex;not null" json:"code"`
	Space          string     `gorm:"size:150;not null" json:"space"`
	Requester      string     `gorm:"size:150;index" json:"requester"`
	EventID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	ZoneID         *uuid.UUID `gorm:"type:uuid;index" json:"zone_id,omitempty"`
	RequestedUnits int        `gorm:"not null;default:1" json:"requested_units"`
	Status         Status     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes          string     `gorm:"type:text" json:"notes"`
	Date           string     `gorm:"type:varchar(10);index" json:"date"`
	Time           string     `gorm:"type:varchar(8)" json:"time"`
	CreatedBy      string     `gorm:"size:150" json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relationships
	Event *events.Event `gorm:"foreignKey:EventID" json:"-"`
	Zone  *events.Zone  `gorm:"foreignKey:ZoneID" json:"-"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Target is the capacity pool the booking draws from
func (b *Booking) Target() capacity.Target {
	return capacity.Target{EventID: b.EventID, ZoneID: b.ZoneID}
}

// ListFilter narrows booking listings and exports
type ListFilter struct {
	EventID   *uuid.UUID
	ZoneID    *uuid.UUID
	Status    Status
	Requester string
	Search    string
	DateFrom  string
	DateTo    string
	Page      int
	Limit     int
}
