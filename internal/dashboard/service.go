package dashboard

import (
	"context"
	"fmt"
	"time"

	"municipal/internal/bookings"
	"municipal/internal/shared/constants"
	"municipal/internal/shared/validation"
	"municipal/internal/users"
	"municipal/pkg/cache"
	"municipal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	agendaSize   = 5
	upcomingSize = 5
)

type Service interface {
	SetCacheService(cacheService cache.Service, ttl time.Duration)
	// Overview builds the dashboard for caller; a nil caller is anonymous
	Overview(ctx context.Context, caller *users.Principal) (*Overview, error)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	ttl          time.Duration
	now          func() time.Time
	log          *logger.Logger
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		ttl:  constants.TTL_DASHBOARD_OVERVIEW,
		now:  time.Now,
		log:  logger.GetDefault(),
	}
}

func (s *service) SetCacheService(cacheService cache.Service, ttl time.Duration) {
	s.cacheService = cacheService
	if ttl > 0 {
		s.ttl = ttl
	}
}

// audience decides which slice of data the caller sees. requester is empty
// for staff, who see everyone's bookings.
func audience(caller *users.Principal) (key, requester string, withBookings bool) {
	switch {
	case caller == nil:
		return "public", "", false
	case caller.CanManage():
		return "staff", "", true
	default:
		return "user:" + caller.Username, caller.Username, true
	}
}

func (s *service) Overview(ctx context.Context, caller *users.Principal) (*Overview, error) {
	key, requester, withBookings := audience(caller)
	cacheKey := constants.BuildDashboardKey(key)

	if s.cacheService != nil {
		var cached Overview
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	overview, err := s.build(ctx, requester, withBookings)
	if err != nil {
		return nil, err
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, overview, s.ttl); err != nil {
			s.log.WarnWithContext(ctx, "Failed to cache dashboard overview", map[string]interface{}{
				"audience": key,
				"error":    err.Error(),
			})
		}
	}
	return overview, nil
}

func (s *service) build(ctx context.Context, requester string, withBookings bool) (*Overview, error) {
	now := s.now()
	today := now.Format(validation.DateLayout)

	overview := &Overview{
		Agenda:           []AgendaItem{},
		UpcomingBookings: []UpcomingBooking{},
		Indicators:       Indicators{BookingsByStatus: map[string]int64{}},
		GeneratedAt:      now.UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		upcoming, err := s.repo.UpcomingEvents(gctx, today, agendaSize)
		if err != nil {
			return fmt.Errorf("failed to load agenda: %w", err)
		}
		for i := range upcoming {
			e := &upcoming[i]
			overview.Agenda = append(overview.Agenda, AgendaItem{
				ID:           e.ID.String(),
				Title:        e.Title,
				Date:         e.Date,
				Time:         e.Time,
				Venue:        e.Venue,
				Status:       string(e.Status),
				CapacityMode: string(e.CapacityMode),
			})
		}
		return nil
	})

	g.Go(func() error {
		total, err := s.repo.CountEvents(gctx)
		if err != nil {
			return fmt.Errorf("failed to count events: %w", err)
		}
		overview.Indicators.TotalEvents = total
		return nil
	})

	if withBookings {
		g.Go(func() error {
			upcoming, err := s.repo.UpcomingBookings(gctx, today, requester, upcomingSize)
			if err != nil {
				return fmt.Errorf("failed to load upcoming bookings: %w", err)
			}
			for i := range upcoming {
				overview.UpcomingBookings = append(overview.UpcomingBookings, toUpcoming(&upcoming[i]))
			}
			return nil
		})

		g.Go(func() error {
			rows, err := s.repo.BookingsByStatus(gctx, requester)
			if err != nil {
				return fmt.Errorf("failed to count bookings: %w", err)
			}
			for _, row := range rows {
				overview.Indicators.BookingsByStatus[row.Status] = row.Total
				overview.Indicators.TotalBookings += row.Total
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

func toUpcoming(b *bookings.Booking) UpcomingBooking {
	item := UpcomingBooking{
		ID:        b.ID.String(),
		Code:      b.Code,
		Space:     b.Space,
		Date:      b.Date,
		Time:      b.Time,
		Requester: b.Requester,
		Status:    string(b.Status),
	}
	if b.Event != nil {
		item.EventTitle = b.Event.Title
	}
	return item
}
