package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"municipal/internal/capacity"
	"municipal/internal/events"
	"municipal/internal/notifications"
	"municipal/internal/shared/config"
	"municipal/internal/shared/constants"
	"municipal/internal/shared/utils/dberrors"
	"municipal/internal/shared/utils/response"
	"municipal/internal/users"
	"municipal/pkg/cache"
	"municipal/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrCodeExhausted     = errors.New("could not generate a unique booking code")
	ErrForbidden         = errors.New("operation not permitted")

	// errTargetMoved aborts a save whose booking changed event or zone
	// between the unlocked read and the row lock
	errTargetMoved = errors.New("booking moved to another event or zone during save")
)

const saveAttempts = 3

// EventStore is the part of the events repository bookings rely on
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
	LockEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
	LockZone(ctx context.Context, id uuid.UUID) (*events.Zone, error)
	ListZones(ctx context.Context, eventID uuid.UUID) ([]events.Zone, error)
}

// Service interface defines the contract for booking business logic
type Service interface {
	SetPublisher(publisher notifications.Publisher)
	SetCacheService(cacheService cache.Service)

	CreateSelfService(ctx context.Context, req SelfServiceRequest) (*BookingResponse, error)
	CreatePrivileged(ctx context.Context, req PrivilegedRequest) (*BookingResponse, error)
	Update(ctx context.Context, id uuid.UUID, req PrivilegedRequest) (*BookingResponse, error)
	Confirm(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error)
	Delete(ctx context.Context, id uuid.UUID, caller users.Principal) error

	Get(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error)
	List(ctx context.Context, filter ListFilter, caller users.Principal) (*response.Page, error)
	Export(ctx context.Context, filter ListFilter, caller users.Principal, w io.Writer) error
	Receipt(ctx context.Context, id uuid.UUID, caller users.Principal, w io.Writer) (string, error)
	Availability(ctx context.Context, eventID uuid.UUID) (*EventAvailability, error)

	// Hooks used by event writes, see events.BookingKeeper
	SyncEventSchedule(ctx context.Context, eventID uuid.UUID, date, clock string) error
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
	DeleteByZone(ctx context.Context, zoneID uuid.UUID) error
	CountHolding(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type service struct {
	repo         Repository
	events       EventStore
	allocator    *capacity.Allocator
	publisher    notifications.Publisher
	cacheService cache.Service
	codeAttempts int
	codeSource   io.Reader
	log          *logger.Logger
}

// NewService creates a booking service whose allocator sums committed units
// from repo under the configured release policy
func NewService(repo Repository, eventStore EventStore, cfg config.BookingConfig) Service {
	attempts := cfg.CodeAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &service{
		repo:         repo,
		events:       eventStore,
		allocator:    capacity.NewAllocator(repo, capacity.Policy{ReleaseCancelled: cfg.ReleaseCancelled}),
		publisher:    notifications.NoopPublisher{},
		codeAttempts: attempts,
		codeSource:   rand.Reader,
		log:          logger.GetDefault(),
	}
}

func (s *service) SetPublisher(publisher notifications.Publisher) {
	s.publisher = publisher
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// mutation describes one write to a booking. A nil id creates a booking.
type mutation struct {
	id      *uuid.UUID
	eventID *uuid.UUID
	zoneID  *uuid.UUID

	// keepTarget reuses the stored event and zone
	keepTarget bool
	// clearZone drops the stored zone when zoneID is nil
	clearZone bool

	actor users.Principal
	kind  notifications.NotificationType

	// apply fills the caller-controlled fields of b; existing is nil on create
	apply func(b, existing *Booking) error
}

func (s *service) CreateSelfService(ctx context.Context, req SelfServiceRequest) (*BookingResponse, error) {
	booking, err := s.save(ctx, mutation{
		eventID: req.EventID,
		zoneID:  req.ZoneID,
		actor:   req.Caller,
		kind:    notifications.TypeBookingCreated,
		apply: func(b, _ *Booking) error {
			b.Space = strings.TrimSpace(req.Space)
			b.Requester = req.Caller.Username
			b.RequestedUnits = unitsOrDefault(req.RequestedUnits, 1)
			b.Status = StatusPending
			b.Notes = req.Notes
			b.CreatedBy = req.Caller.Username
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := booking.ToResponse()
	return &resp, nil
}

func (s *service) CreatePrivileged(ctx context.Context, req PrivilegedRequest) (*BookingResponse, error) {
	if !req.Caller.CanManage() {
		return nil, ErrForbidden
	}

	booking, err := s.save(ctx, mutation{
		eventID: req.EventID,
		zoneID:  req.ZoneID,
		actor:   req.Caller,
		kind:    notifications.TypeBookingCreated,
		apply: func(b, _ *Booking) error {
			b.Space = strings.TrimSpace(req.Space)
			b.Requester = strings.TrimSpace(req.Requester)
			if b.Requester == "" {
				b.Requester = req.Caller.Username
			}
			b.RequestedUnits = unitsOrDefault(req.RequestedUnits, 1)
			b.Status = req.Status
			if b.Status == "" {
				b.Status = StatusPending
			}
			if req.Notes != nil {
				b.Notes = *req.Notes
			}
			b.CreatedBy = req.Caller.Username
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := booking.ToResponse()
	return &resp, nil
}

// Update replaces the editable fields of a booking. Blank fields keep their
// stored value, including the zone while the booking stays on its event.
func (s *service) Update(ctx context.Context, id uuid.UUID, req PrivilegedRequest) (*BookingResponse, error) {
	if !req.Caller.CanManage() {
		return nil, ErrForbidden
	}

	booking, err := s.save(ctx, mutation{
		id:        &id,
		eventID:   req.EventID,
		zoneID:    req.ZoneID,
		clearZone: req.ClearZone,
		actor:     req.Caller,
		kind:      notifications.TypeBookingUpdated,
		apply: func(b, _ *Booking) error {
			if space := strings.TrimSpace(req.Space); space != "" {
				b.Space = space
			}
			if requester := strings.TrimSpace(req.Requester); requester != "" {
				b.Requester = requester
			}
			if req.RequestedUnits != nil {
				b.RequestedUnits = *req.RequestedUnits
			}
			if req.Status != "" {
				b.Status = req.Status
			}
			if req.Notes != nil {
				b.Notes = *req.Notes
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := booking.ToResponse()
	return &resp, nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error) {
	if !caller.CanManage() {
		return nil, ErrForbidden
	}
	return s.changeStatus(ctx, id, caller, StatusConfirmed, nil)
}

// Cancel is open to staff and to the booking's own requester
func (s *service) Cancel(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error) {
	return s.changeStatus(ctx, id, caller, StatusCancelled, func(existing *Booking) error {
		if !caller.CanManage() && !caller.Owns(existing.Requester) {
			return ErrBookingNotFound
		}
		return nil
	})
}

func (s *service) changeStatus(ctx context.Context, id uuid.UUID, caller users.Principal, next Status, authorize func(*Booking) error) (*BookingResponse, error) {
	booking, err := s.save(ctx, mutation{
		id:         &id,
		keepTarget: true,
		actor:      caller,
		kind:       notifications.TypeBookingStatusChanged,
		apply: func(b, existing *Booking) error {
			if authorize != nil {
				if err := authorize(existing); err != nil {
					return err
				}
			}
			b.Status = next
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := booking.ToResponse()
	return &resp, nil
}

// save runs the whole write in one transaction: lock the event and zone rows,
// derive date and time, check the transition, evaluate capacity, persist.
// A booking moved by a concurrent write is saved again from its new target.
func (s *service) save(ctx context.Context, m mutation) (*Booking, error) {
	for attempt := 1; ; attempt++ {
		saved, previousStatus, err := s.saveOnce(ctx, m)
		if errors.Is(err, errTargetMoved) && attempt < saveAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.afterSave(ctx, saved, previousStatus, m)
		return saved, nil
	}
}

// saveOnce works on its own copy of m so a retry starts from the request
func (s *service) saveOnce(ctx context.Context, m mutation) (*Booking, Status, error) {
	var saved Booking
	var previousStatus Status

	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		var current *Booking
		if m.id != nil {
			b, err := s.repo.GetByID(ctx, *m.id)
			if err != nil {
				return notFound(err)
			}
			current = b
			if m.keepTarget {
				m.eventID, m.zoneID = &current.EventID, current.ZoneID
			} else {
				if m.eventID == nil {
					m.eventID = &current.EventID
				}
				if m.zoneID == nil && !m.clearZone && *m.eventID == current.EventID {
					m.zoneID = current.ZoneID
				}
			}
		}

		event, err := s.lockEvent(ctx, m.eventID)
		if err != nil {
			return err
		}
		zone, zoneRef, err := s.lockZone(ctx, m.zoneID)
		if err != nil {
			return err
		}

		var existing *Booking
		booking := &Booking{}
		if current != nil {
			existing, err = s.repo.LockBooking(ctx, current.ID)
			if err != nil {
				return notFound(err)
			}
			// the locks above were chosen from an unlocked read
			if !existing.Target().Equal(current.Target()) {
				return errTargetMoved
			}
			previousStatus = existing.Status
			copied := *existing
			booking = &copied
		}

		if m.eventID != nil {
			booking.EventID = *m.eventID
		}
		booking.ZoneID = m.zoneID

		if err := m.apply(booking, existing); err != nil {
			return err
		}

		if event != nil {
			booking.Date, booking.Time = event.Date, event.Time
			if booking.Space == "" {
				booking.Space = event.DefaultSpace()
			}
		}
		if !booking.Status.IsValid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, booking.Status)
		}
		if existing != nil && !existing.Status.CanTransitionTo(booking.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, existing.Status, booking.Status)
		}

		if err := s.evaluate(ctx, booking, existing, event, zoneRef); err != nil {
			return err
		}

		if existing == nil {
			code, err := s.newCode(ctx)
			if err != nil {
				return err
			}
			booking.Code = code
			if err := s.repo.Create(ctx, booking); err != nil {
				if dberrors.IsUniqueViolation(err) {
					return ErrCodeExhausted
				}
				return fmt.Errorf("failed to create booking: %w", err)
			}
		} else if err := s.repo.Update(ctx, booking); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}

		booking.Event, booking.Zone = event, zone
		saved = *booking
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &saved, previousStatus, nil
}

func (s *service) evaluate(ctx context.Context, booking, existing *Booking, event *events.Event, zoneRef *capacity.ZoneRef) error {
	candidate := capacity.Candidate{
		Zone:     zoneRef,
		Units:    booking.RequestedUnits,
		Released: booking.Status.ReleasesCapacity(),
	}
	if event != nil {
		candidate.Event = event.CapacityRef()
	}
	if existing != nil {
		candidate.ExcludeID = &existing.ID
		candidate.Previous = &capacity.Holding{
			Target:   existing.Target(),
			Units:    existing.RequestedUnits,
			Released: s.allocator.Policy().ReleaseCancelled && existing.Status.ReleasesCapacity(),
		}
	}

	_, err := s.allocator.Evaluate(ctx, candidate)
	if rej, ok := capacity.AsRejection(err); ok {
		eventID := ""
		if event != nil {
			eventID = event.ID.String()
		}
		s.log.LogBookingRejected(ctx, eventID, rej.Code(), booking.RequestedUnits, rej.Available)
	}
	return err
}

// lockEvent returns nil without error when the event is absent so that the
// allocator reports it
func (s *service) lockEvent(ctx context.Context, id *uuid.UUID) (*events.Event, error) {
	if id == nil {
		return nil, nil
	}
	event, err := s.events.LockEvent(ctx, *id)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return event, nil
}

// lockZone locks the referenced zone. An unknown zone still yields a ZoneRef
// owned by no event, which the allocator rejects.
func (s *service) lockZone(ctx context.Context, id *uuid.UUID) (*events.Zone, *capacity.ZoneRef, error) {
	if id == nil {
		return nil, nil, nil
	}
	zone, err := s.events.LockZone(ctx, *id)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, &capacity.ZoneRef{ID: *id, EventID: uuid.Nil}, nil
		}
		return nil, nil, fmt.Errorf("failed to lock zone: %w", err)
	}
	return zone, zone.CapacityRef(), nil
}

func (s *service) newCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code, err := GenerateCode(s.codeSource)
		if err != nil {
			return "", fmt.Errorf("failed to generate booking code: %w", err)
		}
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check booking code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func (s *service) afterSave(ctx context.Context, b *Booking, previous Status, m mutation) {
	created := m.id == nil
	s.log.LogBookingSaved(ctx, b.ID.String(), b.Code, b.EventID.String(), b.Requester, b.RequestedUnits, created)
	if !created && previous != b.Status {
		s.log.LogBookingStatusChanged(ctx, b.ID.String(), string(previous), string(b.Status), m.actor.Username)
	}

	s.invalidateDashboard(ctx)
	s.publish(ctx, m.kind, b, previous, m.actor)
}

func (s *service) publish(ctx context.Context, kind notifications.NotificationType, b *Booking, previous Status, actor users.Principal) {
	if s.publisher == nil {
		return
	}

	n := notifications.New(kind)
	n.BookingID = b.ID
	n.BookingCode = b.Code
	n.EventID = b.EventID
	n.ZoneID = b.ZoneID
	n.Requester = b.Requester
	n.Status = string(b.Status)
	n.PreviousStatus = string(previous)
	n.RequestedUnits = b.RequestedUnits
	n.Actor = actor.Username

	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to publish booking notification", err, map[string]interface{}{
			"booking_id": b.ID.String(),
			"type":       string(kind),
		})
	}
}

func (s *service) invalidateDashboard(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_DASHBOARD); err != nil {
		s.log.WarnWithContext(ctx, "Failed to invalidate dashboard cache", map[string]interface{}{"error": err.Error()})
	}
}

func (s *service) Delete(ctx context.Context, id uuid.UUID, caller users.Principal) error {
	if !caller.CanManage() {
		return ErrForbidden
	}

	var deleted *Booking
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.LockBooking(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		deleted = b
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoWithContext(ctx, "Booking deleted", map[string]interface{}{
		"booking_id": id.String(),
		"code":       deleted.Code,
		"actor":      caller.Username,
	})
	s.invalidateDashboard(ctx)
	s.publish(ctx, notifications.TypeBookingDeleted, deleted, deleted.Status, caller)
	return nil
}

// Get hides bookings of other requesters from non-staff callers
func (s *service) Get(ctx context.Context, id uuid.UUID, caller users.Principal) (*BookingResponse, error) {
	booking, err := s.visible(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	resp := booking.ToResponse()
	return &resp, nil
}

func (s *service) visible(ctx context.Context, id uuid.UUID, caller users.Principal) (*Booking, error) {
	booking, err := s.repo.GetByIDWithRelations(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !caller.CanManage() && !caller.Owns(booking.Requester) {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, caller users.Principal) (*response.Page, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = 10
	}
	if !caller.CanManage() {
		filter.Requester = caller.Username
	}

	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	items := make([]BookingResponse, len(bookings))
	for i := range bookings {
		items[i] = bookings[i].ToResponse()
	}

	page := response.NewPage(items, total, filter.Page, filter.Limit)
	return &page, nil
}

func (s *service) Export(ctx context.Context, filter ListFilter, caller users.Principal, w io.Writer) error {
	if !caller.CanManage() {
		return ErrForbidden
	}

	bookings, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load bookings for export: %w", err)
	}
	return writeCSV(w, bookings)
}

// Receipt renders a one-page PDF for the booking and returns its file name
func (s *service) Receipt(ctx context.Context, id uuid.UUID, caller users.Principal, w io.Writer) (string, error) {
	booking, err := s.visible(ctx, id, caller)
	if err != nil {
		return "", err
	}
	if err := writeReceipt(w, booking); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return receiptFilename(booking), nil
}

func (s *service) Availability(ctx context.Context, eventID uuid.UUID) (*EventAvailability, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	result := &EventAvailability{
		EventID:      event.ID.String(),
		CapacityMode: event.CapacityMode,
		Entries:      []AvailabilityEntry{},
	}

	if event.CapacityMode != events.ModeZones {
		decision, err := s.allocator.Availability(ctx, capacity.Target{EventID: event.ID}, event.TotalQuota)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, AvailabilityEntry{Decision: *decision})
		return result, nil
	}

	zones, err := s.events.ListZones(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	for i := range zones {
		zoneID := zones[i].ID
		decision, err := s.allocator.Availability(ctx, capacity.Target{EventID: event.ID, ZoneID: &zoneID}, zones[i].Quota)
		if err != nil {
			return nil, err
		}
		id := zoneID.String()
		result.Entries = append(result.Entries, AvailabilityEntry{
			ZoneID:   &id,
			ZoneName: zones[i].Name,
			Decision: *decision,
		})
	}
	return result, nil
}

func (s *service) SyncEventSchedule(ctx context.Context, eventID uuid.UUID, date, clock string) error {
	return s.repo.UpdateSchedule(ctx, eventID, date, clock)
}

func (s *service) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	return s.repo.DeleteByEvent(ctx, eventID)
}

func (s *service) DeleteByZone(ctx context.Context, zoneID uuid.UUID) error {
	return s.repo.DeleteByZone(ctx, zoneID)
}

// CountHolding counts the event's bookings that hold capacity under the
// release policy
func (s *service) CountHolding(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return s.repo.CountHolding(ctx, eventID, s.allocator.Policy().ReleaseCancelled)
}

func notFound(err error) error {
	if dberrors.IsNotFound(err) {
		return ErrBookingNotFound
	}
	return fmt.Errorf("failed to load booking: %w", err)
}

func unitsOrDefault(units *int, fallback int) int {
	if units == nil {
		return fallback
	}
	return *units
}
