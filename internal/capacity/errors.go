package capacity

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEvent         = errors.New("booking must reference an event")
	ErrInvalidUnits         = errors.New("requested units must be greater than zero")
	ErrZoneNotAllowed       = errors.New("event does not use zones")
	ErrZoneRequired         = errors.New("event requires a zone")
	ErrZoneMismatch         = errors.New("zone does not belong to the event")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

// Field names used in rejections, matching the booking JSON fields
const (
	FieldEvent = "event_id"
	FieldZone  = "zone_id"
	FieldUnits = "requested_units"
)

// Rejection is a caller-input validation failure produced by Evaluate.
// Available is only meaningful for ErrInsufficientCapacity.
type Rejection struct {
	Kind      error
	Field     string
	Available int
}

func (r *Rejection) Error() string {
	if errors.Is(r.Kind, ErrInsufficientCapacity) {
		return fmt.Sprintf("%s: only %d units available", r.Kind.Error(), r.Available)
	}
	return r.Kind.Error()
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

// Code is the stable machine-readable name of the rejection kind
func (r *Rejection) Code() string {
	switch r.Kind {
	case ErrMissingEvent:
		return "missing_event"
	case ErrInvalidUnits:
		return "invalid_units"
	case ErrZoneNotAllowed:
		return "zone_not_allowed"
	case ErrZoneRequired:
		return "zone_required"
	case ErrZoneMismatch:
		return "zone_mismatch"
	case ErrInsufficientCapacity:
		return "insufficient_capacity"
	default:
		return "invalid"
	}
}

func reject(kind error, field string) *Rejection {
	return &Rejection{Kind: kind, Field: field}
}

// AsRejection unwraps err into a *Rejection when it is one
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
