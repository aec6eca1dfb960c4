package events

import "municipal/internal/capacity"

type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusOpenCall  EventStatus = "open_call"
	StatusConfirmed EventStatus = "confirmed"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusOpenCall, StatusConfirmed:
		return true
	default:
		return false
	}
}

// CapacityMode selects where an event's bookings draw capacity from
type CapacityMode = capacity.Mode

const (
	ModeGeneral = capacity.ModeGeneral
	ModeZones   = capacity.ModeZones
)
