package bookings

import (
	"time"

	"municipal/internal/capacity"
)

type BookingResponse struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Space          string    `json:"space"`
	Requester      string    `json:"requester"`
	EventID        string    `json:"event_id"`
	EventTitle     string    `json:"event_title,omitempty"`
	ZoneID         *string   `json:"zone_id,omitempty"`
	ZoneName       string    `json:"zone_name,omitempty"`
	RequestedUnits int       `json:"requested_units"`
	Status         Status    `json:"status"`
	Notes          string    `json:"notes"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AvailabilityEntry reports one capacity pool of an event
type AvailabilityEntry struct {
	ZoneID   *string `json:"zone_id,omitempty"`
	ZoneName string  `json:"zone_name,omitempty"`
	capacity.Decision
}

type EventAvailability struct {
	EventID      string              `json:"event_id"`
	CapacityMode capacity.Mode       `json:"capacity_mode"`
	Entries      []AvailabilityEntry `json:"entries"`
}

func (b *Booking) ToResponse() BookingResponse {
	resp := BookingResponse{
		ID:             b.ID.String(),
		Code:           b.Code,
		Space:          b.Space,
		Requester:      b.Requester,
		EventID:        b.EventID.String(),
		RequestedUnits: b.RequestedUnits,
		Status:         b.Status,
		Notes:          b.Notes,
		Date:           b.Date,
		Time:           b.Time,
		CreatedBy:      b.CreatedBy,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.Event != nil {
		resp.EventTitle = b.Event.Title
	}
	if b.ZoneID != nil {
		zoneID := b.ZoneID.String()
		resp.ZoneID = &zoneID
	}
	if b.Zone != nil {
		resp.ZoneName = b.Zone.Name
	}
	return resp
}
