package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"municipal/internal/shared/constants"
	"municipal/internal/shared/utils/dberrors"
	"municipal/internal/shared/utils/response"
	"municipal/internal/shared/validation"
	"municipal/internal/users"
	"municipal/pkg/cache"
	"municipal/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrZoneNotFound  = errors.New("zone not found")
	ErrZonesDisabled = errors.New("event does not use zones")
	ErrZoneNameTaken = errors.New("a zone with this name already exists for the event")
	ErrModeLocked    = errors.New("capacity mode cannot change while bookings hold capacity")
)

// BookingKeeper lets event writes reach the bookings that hang off an event
// inside the same transaction.
type BookingKeeper interface {
	SyncEventSchedule(ctx context.Context, eventID uuid.UUID, date, clock string) error
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
	DeleteByZone(ctx context.Context, zoneID uuid.UUID) error
	CountHolding(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type Service interface {
	SetBookingKeeper(keeper BookingKeeper)
	SetCacheService(cacheService cache.Service, ttl time.Duration)

	CreateEvent(ctx context.Context, actor users.Principal, req CreateEventRequest) (*EventResponse, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	GetAllEvents(ctx context.Context, query EventListQuery) (*response.Page, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, actor users.Principal, req UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	ListZones(ctx context.Context, eventID uuid.UUID) ([]ZoneResponse, error)
	CreateZone(ctx context.Context, eventID uuid.UUID, req CreateZoneRequest) (*ZoneResponse, error)
	UpdateZone(ctx context.Context, eventID, zoneID uuid.UUID, req UpdateZoneRequest) (*ZoneResponse, error)
	DeleteZone(ctx context.Context, eventID, zoneID uuid.UUID) error
}

type service struct {
	repo         Repository
	keeper       BookingKeeper
	cacheService cache.Service
	detailTTL    time.Duration
	log          *logger.Logger
}

func NewService(repo Repository) Service {
	return &service{
		repo:      repo,
		detailTTL: constants.TTL_EVENT_DETAIL,
		log:       logger.GetDefault(),
	}
}

func (s *service) SetBookingKeeper(keeper BookingKeeper) {
	s.keeper = keeper
}

// SetCacheService injects the cache used for event details. A zero ttl keeps
// the default.
func (s *service) SetCacheService(cacheService cache.Service, ttl time.Duration) {
	s.cacheService = cacheService
	if ttl > 0 {
		s.detailTTL = ttl
	}
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildEventDetailKey(eventID.String())); err != nil {
		s.log.WarnWithContext(ctx, "Failed to invalidate event cache", map[string]interface{}{
			"event_id": eventID.String(),
			"error":    err.Error(),
		})
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_DASHBOARD); err != nil {
		s.log.WarnWithContext(ctx, "Failed to invalidate dashboard cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *service) CreateEvent(ctx context.Context, actor users.Principal, req CreateEventRequest) (*EventResponse, error) {
	event := &Event{
		Title:        strings.TrimSpace(req.Title),
		Date:         req.Date,
		Time:         validation.NormalizeClock(req.Time),
		Venue:        strings.TrimSpace(req.Venue),
		Description:  req.Description,
		Status:       StatusDraft,
		CapacityMode: ModeGeneral,
		TotalQuota:   req.TotalQuota,
		CreatedBy:    actor.Username,
		UpdatedBy:    actor.Username,
	}
	if req.Status != "" {
		event.Status = EventStatus(req.Status)
	}
	if req.CapacityMode != "" {
		event.CapacityMode = CapacityMode(req.CapacityMode)
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.invalidate(ctx, event.ID)
	s.log.InfoWithContext(ctx, "Event created", map[string]interface{}{
		"event_id":      event.ID.String(),
		"capacity_mode": string(event.CapacityMode),
		"created_by":    actor.Username,
	})

	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	cacheKey := constants.BuildEventDetailKey(id.String())
	if s.cacheService != nil {
		var cached EventResponse
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	resp := event.ToResponse()
	if event.CapacityMode == ModeZones {
		zones, err := s.repo.ListZones(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list zones: %w", err)
		}
		resp.Zones = toZoneResponses(zones)
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, resp, s.detailTTL); err != nil {
			s.log.WarnWithContext(ctx, "Failed to cache event", map[string]interface{}{"error": err.Error()})
		}
	}
	return &resp, nil
}

func (s *service) GetAllEvents(ctx context.Context, query EventListQuery) (*response.Page, error) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	events, total, err := s.repo.GetAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	items := make([]EventResponse, len(events))
	for i := range events {
		items[i] = events[i].ToResponse()
	}

	page := response.NewPage(items, total, query.Page, query.Limit)
	return &page, nil
}

func (s *service) UpdateEvent(ctx context.Context, id uuid.UUID, actor users.Principal, req UpdateEventRequest) (*EventResponse, error) {
	var updated *Event

	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		event, err := s.lockEvent(ctx, id)
		if err != nil {
			return err
		}

		prevDate, prevTime := event.Date, event.Time

		if req.Title != nil {
			event.Title = strings.TrimSpace(*req.Title)
		}
		if req.Date != nil {
			event.Date = *req.Date
		}
		if req.Time != nil {
			event.Time = validation.NormalizeClock(*req.Time)
		}
		if req.Venue != nil {
			event.Venue = strings.TrimSpace(*req.Venue)
		}
		if req.Description != nil {
			event.Description = *req.Description
		}
		if req.Status != nil {
			event.Status = EventStatus(*req.Status)
		}
		if req.TotalQuota != nil {
			event.TotalQuota = *req.TotalQuota
		}
		if req.CapacityMode != nil && CapacityMode(*req.CapacityMode) != event.CapacityMode {
			holding, err := s.countHolding(ctx, id)
			if err != nil {
				return err
			}
			if holding > 0 {
				return ErrModeLocked
			}
			event.CapacityMode = CapacityMode(*req.CapacityMode)
		}
		event.UpdatedBy = actor.Username

		if err := s.repo.Update(ctx, event); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}

		if (event.Date != prevDate || event.Time != prevTime) && s.keeper != nil {
			if err := s.keeper.SyncEventSchedule(ctx, id, event.Date, event.Time); err != nil {
				return fmt.Errorf("failed to propagate schedule: %w", err)
			}
		}

		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	resp := updated.ToResponse()
	return &resp, nil
}

func (s *service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.lockEvent(ctx, id); err != nil {
			return err
		}
		if s.keeper != nil {
			if err := s.keeper.DeleteByEvent(ctx, id); err != nil {
				return fmt.Errorf("failed to delete event bookings: %w", err)
			}
		}
		if err := s.repo.DeleteZonesByEvent(ctx, id); err != nil {
			return fmt.Errorf("failed to delete event zones: %w", err)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.log.InfoWithContext(ctx, "Event deleted", map[string]interface{}{"event_id": id.String()})
	return nil
}

func (s *service) ListZones(ctx context.Context, eventID uuid.UUID) ([]ZoneResponse, error) {
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		if dberrors.IsNotFound(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	zones, err := s.repo.ListZones(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return toZoneResponses(zones), nil
}

func (s *service) CreateZone(ctx context.Context, eventID uuid.UUID, req CreateZoneRequest) (*ZoneResponse, error) {
	zone := &Zone{
		EventID: eventID,
		Name:    strings.TrimSpace(req.Name),
		Quota:   req.Quota,
	}

	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		event, err := s.lockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.CapacityMode != ModeZones {
			return ErrZonesDisabled
		}
		if err := s.ensureZoneNameFree(ctx, eventID, zone.Name, nil); err != nil {
			return err
		}
		if err := s.repo.CreateZone(ctx, zone); err != nil {
			if dberrors.IsUniqueViolation(err) {
				return ErrZoneNameTaken
			}
			return fmt.Errorf("failed to create zone: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	resp := zone.ToResponse()
	return &resp, nil
}

func (s *service) UpdateZone(ctx context.Context, eventID, zoneID uuid.UUID, req UpdateZoneRequest) (*ZoneResponse, error) {
	var zone *Zone

	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.lockEvent(ctx, eventID); err != nil {
			return err
		}
		z, err := s.lockZone(ctx, eventID, zoneID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if err := s.ensureZoneNameFree(ctx, eventID, name, &zoneID); err != nil {
				return err
			}
			z.Name = name
		}
		if req.Quota != nil {
			z.Quota = *req.Quota
		}

		if err := s.repo.UpdateZone(ctx, z); err != nil {
			if dberrors.IsUniqueViolation(err) {
				return ErrZoneNameTaken
			}
			return fmt.Errorf("failed to update zone: %w", err)
		}
		zone = z
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	resp := zone.ToResponse()
	return &resp, nil
}

func (s *service) DeleteZone(ctx context.Context, eventID, zoneID uuid.UUID) error {
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.lockEvent(ctx, eventID); err != nil {
			return err
		}
		if _, err := s.lockZone(ctx, eventID, zoneID); err != nil {
			return err
		}
		if s.keeper != nil {
			if err := s.keeper.DeleteByZone(ctx, zoneID); err != nil {
				return fmt.Errorf("failed to delete zone bookings: %w", err)
			}
		}
		if err := s.repo.DeleteZone(ctx, zoneID); err != nil {
			return fmt.Errorf("failed to delete zone: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, eventID)
	return nil
}

func (s *service) lockEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := s.repo.LockEvent(ctx, id)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return event, nil
}

// lockZone locks a zone and checks that it hangs off eventID
func (s *service) lockZone(ctx context.Context, eventID, zoneID uuid.UUID) (*Zone, error) {
	zone, err := s.repo.LockZone(ctx, zoneID)
	if err != nil {
		if dberrors.IsNotFound(err) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("failed to lock zone: %w", err)
	}
	if zone.EventID != eventID {
		return nil, ErrZoneNotFound
	}
	return zone, nil
}

func (s *service) ensureZoneNameFree(ctx context.Context, eventID uuid.UUID, name string, excludeID *uuid.UUID) error {
	exists, err := s.repo.ZoneNameExists(ctx, eventID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check zone name: %w", err)
	}
	if exists {
		return ErrZoneNameTaken
	}
	return nil
}

func (s *service) countHolding(ctx context.Context, eventID uuid.UUID) (int64, error) {
	if s.keeper == nil {
		return 0, nil
	}
	n, err := s.keeper.CountHolding(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func toZoneResponses(zones []Zone) []ZoneResponse {
	out := make([]ZoneResponse, len(zones))
	for i := range zones {
		out[i] = zones[i].ToResponse()
	}
	return out
}
