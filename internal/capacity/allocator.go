// Package capacity decides whether a booking fits in the remaining capacity of
// its allocation target: the event itself in general mode, or one of the
// event's zones in zones mode.
package capacity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeGeneral Mode = "general"
	ModeZones   Mode = "zones"
)

func (m Mode) IsValid() bool {
	return m == ModeGeneral || m == ModeZones
}

// EventRef is the capacity view of an event
type EventRef struct {
	ID    uuid.UUID
	Mode  Mode
	Quota int
}

// ZoneRef is the capacity view of a zone
type ZoneRef struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Quota   int
}

// Target identifies the pool a booking draws from. ZoneID is nil in general mode.
type Target struct {
	EventID uuid.UUID
	ZoneID  *uuid.UUID
}

func (t Target) Equal(o Target) bool {
	if t.EventID != o.EventID {
		return false
	}
	if t.ZoneID == nil || o.ZoneID == nil {
		return t.ZoneID == nil && o.ZoneID == nil
	}
	return *t.ZoneID == *o.ZoneID
}

func (t Target) String() string {
	if t.ZoneID == nil {
		return "event:" + t.EventID.String()
	}
	return "event:" + t.EventID.String() + "/zone:" + t.ZoneID.String()
}

// Holding is what an existing booking held before the edit being evaluated
type Holding struct {
	Target   Target
	Units    int
	Released bool
}

// Candidate is a new or edited booking awaiting evaluation
type Candidate struct {
	Event *EventRef
	Zone  *ZoneRef
	Units int

	// ExcludeID is the booking being edited; its rows are left out of the sum.
	ExcludeID *uuid.UUID
	Previous  *Holding

	// Released marks a candidate whose own status returns its units to the pool.
	Released bool
}

// Query selects the bookings whose units count as committed
type Query struct {
	Target       Target
	ExcludeID    *uuid.UUID
	SkipReleased bool
}

// Ledger sums committed units from persisted bookings
type Ledger interface {
	CommittedUnits(ctx context.Context, q Query) (int, error)
}

// Policy controls which bookings hold capacity
type Policy struct {
	ReleaseCancelled bool
}

// Decision describes the target's state at evaluation time
type Decision struct {
	Target    Target `json:"-"`
	Quota     int    `json:"quota"`
	Committed int    `json:"committed"`
	Available int    `json:"available"`
	Unlimited bool   `json:"unlimited"`
}

type Allocator struct {
	ledger Ledger
	policy Policy
}

func NewAllocator(ledger Ledger, policy Policy) *Allocator {
	return &Allocator{ledger: ledger, policy: policy}
}

func (a *Allocator) Policy() Policy {
	return a.policy
}

// Evaluate accepts the candidate by returning a Decision, or rejects it with
// a *Rejection. Any other error comes from the ledger.
//
// The caller must hold a lock on the target (or run serialized) for the
// decision to stay valid until its write commits.
func (a *Allocator) Evaluate(ctx context.Context, c Candidate) (*Decision, error) {
	if c.Event == nil {
		return nil, reject(ErrMissingEvent, FieldEvent)
	}
	if c.Units <= 0 {
		return nil, reject(ErrInvalidUnits, FieldUnits)
	}

	target, quota, err := resolve(c)
	if err != nil {
		return nil, err
	}

	decision, err := a.measure(ctx, target, quota, c.ExcludeID)
	if err != nil {
		return nil, err
	}

	switch {
	case decision.Unlimited:
		return decision, nil
	case c.Released && a.policy.ReleaseCancelled:
		return decision, nil
	case c.Previous != nil && !c.Previous.Released && c.Previous.Target.Equal(target) && c.Units <= c.Previous.Units:
		return decision, nil
	case c.Units > decision.Available:
		return nil, &Rejection{Kind: ErrInsufficientCapacity, Field: FieldUnits, Available: decision.Available}
	}
	return decision, nil
}

// Availability reports the target's remaining capacity for display
func (a *Allocator) Availability(ctx context.Context, target Target, quota int) (*Decision, error) {
	return a.measure(ctx, target, quota, nil)
}

func (a *Allocator) measure(ctx context.Context, target Target, quota int, exclude *uuid.UUID) (*Decision, error) {
	committed, err := a.ledger.CommittedUnits(ctx, Query{
		Target:       target,
		ExcludeID:    exclude,
		SkipReleased: a.policy.ReleaseCancelled,
	})
	if err != nil {
		return nil, fmt.Errorf("sum committed units for %s: %w", target, err)
	}

	available := quota - committed
	if available < 0 {
		available = 0
	}
	return &Decision{
		Target:    target,
		Quota:     quota,
		Committed: committed,
		Available: available,
		Unlimited: quota == 0,
	}, nil
}

func resolve(c Candidate) (Target, int, error) {
	target := Target{EventID: c.Event.ID}

	switch c.Event.Mode {
	case ModeZones:
		if c.Zone == nil {
			return target, 0, reject(ErrZoneRequired, FieldZone)
		}
		if c.Zone.EventID != c.Event.ID {
			return target, 0, reject(ErrZoneMismatch, FieldZone)
		}
		zoneID := c.Zone.ID
		target.ZoneID = &zoneID
		return target, c.Zone.Quota, nil
	default:
		if c.Zone != nil {
			return target, 0, reject(ErrZoneNotAllowed, FieldZone)
		}
		return target, c.Event.Quota, nil
	}
}
