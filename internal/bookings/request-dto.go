package bookings

import (
	"encoding/json"
	"fmt"

	"municipal/internal/users"

	"github.com/google/uuid"
)

// CreateBookingRequest is the body of POST /bookings. The event is not
// binding-required so that a missing event is reported like any other
// capacity rejection.
type CreateBookingRequest struct {
	EventID        string  `json:"event_id" binding:"omitempty,uuid"`
	ZoneID         *string `json:"zone_id" binding:"omitempty,uuid"`
	Space          string  `json:"space" binding:"omitempty,min=3,max=150"`
	Requester      string  `json:"requester" binding:"max=150"`
	RequestedUnits *int    `json:"requested_units"`
	Status         string  `json:"status" binding:"omitempty,oneof=pending confirmed cancelled"`
	Notes          string  `json:"notes" binding:"max=2000"`
}

// UpdateBookingRequest is the body of PUT /bookings/:id. An absent zone_id
// keeps the stored zone; an explicit null clears it.
type UpdateBookingRequest struct {
	EventID        string     `json:"event_id" binding:"omitempty,uuid"`
	ZoneID         OptionalID `json:"zone_id"`
	Space          string     `json:"space" binding:"omitempty,min=3,max=150"`
	Requester      string     `json:"requester" binding:"max=150"`
	RequestedUnits *int       `json:"requested_units"`
	Status         string     `json:"status" binding:"omitempty,oneof=pending confirmed cancelled"`
	Notes          *string    `json:"notes" binding:"omitempty,max=2000"`
}

// OptionalID tells an absent JSON field apart from an explicit null
type OptionalID struct {
	Present bool
	ID      *uuid.UUID
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Present = true
	o.ID = nil
	if string(data) == "null" {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("id must be a string: %w", err)
	}
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", raw, err)
	}
	o.ID = &id
	return nil
}

// Cleared reports an explicit null or empty string
func (o OptionalID) Cleared() bool {
	return o.Present && o.ID == nil
}

type BookingListQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	EventID   string `form:"event_id" binding:"omitempty,uuid"`
	ZoneID    string `form:"zone_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled"`
	Requester string `form:"requester" binding:"omitempty,max=150"`
	Search    string `form:"search" binding:"omitempty,max=150"`
	DateFrom  string `form:"date_from" binding:"omitempty,isodate"`
	DateTo    string `form:"date_to" binding:"omitempty,isodate"`
}

// SelfServiceRequest is a booking made by the requester themselves. The
// requester is always the caller and the booking always starts pending.
type SelfServiceRequest struct {
	Caller         users.Principal
	EventID        *uuid.UUID
	ZoneID         *uuid.UUID
	Space          string
	RequestedUnits *int
	Notes          string
}

// PrivilegedRequest is a booking made or edited by staff on anyone's behalf.
// On edits a nil ZoneID keeps the stored zone unless ClearZone is set or the
// booking moves to another event.
type PrivilegedRequest struct {
	Caller         users.Principal
	EventID        *uuid.UUID
	ZoneID         *uuid.UUID
	ClearZone      bool
	Space          string
	Requester      string
	RequestedUnits *int
	Status         Status
	Notes          *string
}

func (r CreateBookingRequest) SelfService(caller users.Principal) SelfServiceRequest {
	return SelfServiceRequest{
		Caller:         caller,
		EventID:        parseOptionalID(r.EventID),
		ZoneID:         parseOptionalIDPtr(r.ZoneID),
		Space:          r.Space,
		RequestedUnits: r.RequestedUnits,
		Notes:          r.Notes,
	}
}

func (r CreateBookingRequest) Privileged(caller users.Principal) PrivilegedRequest {
	notes := r.Notes
	return PrivilegedRequest{
		Caller:         caller,
		EventID:        parseOptionalID(r.EventID),
		ZoneID:         parseOptionalIDPtr(r.ZoneID),
		Space:          r.Space,
		Requester:      r.Requester,
		RequestedUnits: r.RequestedUnits,
		Status:         Status(r.Status),
		Notes:          &notes,
	}
}

func (r UpdateBookingRequest) Privileged(caller users.Principal) PrivilegedRequest {
	return PrivilegedRequest{
		Caller:         caller,
		EventID:        parseOptionalID(r.EventID),
		ZoneID:         r.ZoneID.ID,
		ClearZone:      r.ZoneID.Cleared(),
		Space:          r.Space,
		Requester:      r.Requester,
		RequestedUnits: r.RequestedUnits,
		Status:         Status(r.Status),
		Notes:          r.Notes,
	}
}

func (q BookingListQuery) Filter() ListFilter {
	return ListFilter{
		EventID:   parseOptionalID(q.EventID),
		ZoneID:    parseOptionalID(q.ZoneID),
		Status:    Status(q.Status),
		Requester: q.Requester,
		Search:    q.Search,
		DateFrom:  q.DateFrom,
		DateTo:    q.DateTo,
		Page:      q.Page,
		Limit:     q.Limit,
	}
}

func parseOptionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func parseOptionalIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	return parseOptionalID(*s)
}
