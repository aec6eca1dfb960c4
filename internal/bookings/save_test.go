package bookings

import (
	"context"
	"sync"
	"testing"

	"municipal/internal/capacity"
	"municipal/internal/events"
	"municipal/internal/shared/config"
	"municipal/internal/shared/txn"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// staleRepository answers the unlocked read with an outdated row, as seen by
// a transaction that read the booking just before another one moved it
type staleRepository struct {
	Repository
	stale  *Booking
	always bool

	mu    sync.Mutex
	reads int
}

func (r *staleRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	r.reads++
	first := r.reads == 1
	r.mu.Unlock()

	if first || r.always {
		copied := *r.stale
		return &copied, nil
	}
	return r.Repository.GetByID(ctx, id)
}

func movedBooking(t *testing.T, f *fixture) (id uuid.UUID, stale *Booking, second *events.Event) {
	t.Helper()
	ctx := context.Background()

	first := f.event(t, events.ModeGeneral, 0)
	second = f.event(t, events.ModeGeneral, 0)
	require.NoError(t, f.db.Model(second).Updates(map[string]interface{}{"date": "2026-07-01", "time": "11:00:00"}).Error)

	created, err := f.svc.CreateSelfService(ctx, selfService(first, nil, 1))
	require.NoError(t, err)
	id = uuid.MustParse(created.ID)

	stale, err = f.svc.repo.GetByID(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, EventID: &second.ID})
	require.NoError(t, err)
	return id, stale, second
}

func TestSave_RetriesWhenBookingMovedBeforeLock(t *testing.T) {
	f := newFixture(t, true)
	id, stale, second := movedBooking(t, f)

	repo := &staleRepository{Repository: NewRepository(f.db), stale: stale}
	svc := NewService(repo, f.events, config.BookingConfig{ReleaseCancelled: true, CodeAttempts: 3})

	confirmed, err := svc.Confirm(context.Background(), id, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, second.ID.String(), confirmed.EventID)
	assert.Equal(t, "2026-07-01", confirmed.Date)
	assert.Equal(t, 2, repo.reads)
}

func TestSave_GivesUpWhenTargetKeepsMoving(t *testing.T) {
	f := newFixture(t, true)
	id, stale, second := movedBooking(t, f)

	repo := &staleRepository{Repository: NewRepository(f.db), stale: stale, always: true}
	svc := NewService(repo, f.events, config.BookingConfig{ReleaseCancelled: true, CodeAttempts: 3})

	_, err := svc.Confirm(context.Background(), id, staff)
	assert.ErrorIs(t, err, errTargetMoved)
	assert.Equal(t, saveAttempts, repo.reads)

	stored, err := f.svc.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.EventID)
	assert.Equal(t, StatusPending, stored.Status)
}

// lockTrace records the capacity-relevant calls of one save and the
// transaction each ran in
type lockTrace struct {
	mu    sync.Mutex
	calls []string
	txs   []*gorm.DB
}

func (l *lockTrace) record(ctx context.Context, call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
	l.txs = append(l.txs, txn.FromContext(ctx))
}

func (l *lockTrace) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls, l.txs = nil, nil
}

func (l *lockTrace) requireSingleTransaction(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, l.txs)
	for i, tx := range l.txs {
		require.NotNil(t, tx, "%s ran outside a transaction", l.calls[i])
		assert.Same(t, l.txs[0], tx, "%s ran in another transaction", l.calls[i])
	}
}

type tracingEvents struct {
	EventStore
	trace *lockTrace
}

func (s tracingEvents) LockEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	s.trace.record(ctx, "LockEvent")
	return s.EventStore.LockEvent(ctx, id)
}

func (s tracingEvents) LockZone(ctx context.Context, id uuid.UUID) (*events.Zone, error) {
	s.trace.record(ctx, "LockZone")
	return s.EventStore.LockZone(ctx, id)
}

type tracingRepository struct {
	Repository
	trace *lockTrace
}

func (r tracingRepository) LockBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.trace.record(ctx, "LockBooking")
	return r.Repository.LockBooking(ctx, id)
}

func (r tracingRepository) CommittedUnits(ctx context.Context, q capacity.Query) (int, error) {
	r.trace.record(ctx, "CommittedUnits")
	return r.Repository.CommittedUnits(ctx, q)
}

func TestSave_LocksTargetBeforeSummingCommittedUnits(t *testing.T) {
	f := newFixture(t, true)
	trace := &lockTrace{}
	svc := NewService(
		tracingRepository{Repository: NewRepository(f.db), trace: trace},
		tracingEvents{EventStore: f.events, trace: trace},
		config.BookingConfig{ReleaseCancelled: true, CodeAttempts: 3},
	)
	ctx := context.Background()

	t.Run("general mode create", func(t *testing.T) {
		trace.reset()
		event := f.event(t, events.ModeGeneral, 4)

		_, err := svc.CreateSelfService(ctx, selfService(event, nil, 1))
		require.NoError(t, err)
		assert.Equal(t, []string{"LockEvent", "CommittedUnits"}, trace.calls)
		trace.requireSingleTransaction(t)
	})

	t.Run("zones mode create", func(t *testing.T) {
		trace.reset()
		event := f.event(t, events.ModeZones, 0)
		zone := f.zone(t, event, "Balcony", 3)

		_, err := svc.CreateSelfService(ctx, selfService(event, zone, 1))
		require.NoError(t, err)
		assert.Equal(t, []string{"LockEvent", "LockZone", "CommittedUnits"}, trace.calls)
		trace.requireSingleTransaction(t)
	})

	t.Run("edit", func(t *testing.T) {
		event := f.event(t, events.ModeGeneral, 4)
		created, err := svc.CreateSelfService(ctx, selfService(event, nil, 1))
		require.NoError(t, err)

		trace.reset()
		_, err = svc.Update(ctx, uuid.MustParse(created.ID), PrivilegedRequest{Caller: staff, RequestedUnits: units(3)})
		require.NoError(t, err)
		assert.Equal(t, []string{"LockEvent", "LockBooking", "CommittedUnits"}, trace.calls)
		trace.requireSingleTransaction(t)
	})
}
