package bookings

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"municipal/internal/capacity"
	"municipal/internal/events"
	"municipal/internal/notifications"
	"municipal/internal/shared/config"
	"municipal/internal/testutil"
	"municipal/internal/users"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	staff   = users.Principal{Username: "marta", Role: users.RoleEditor}
	citizen = users.Principal{Username: "eva", Role: users.RoleConsultant}
	other   = users.Principal{Username: "joan", Role: users.RoleConsultant}
)

type fixture struct {
	db      *gorm.DB
	svc     *service
	events  events.Repository
	publish *capturePublisher
}

type capturePublisher struct {
	mu    sync.Mutex
	kinds []notifications.NotificationType
}

func (p *capturePublisher) Publish(_ context.Context, n *notifications.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, n.Type)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []notifications.NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.NotificationType(nil), p.kinds...)
}

func newFixture(t *testing.T, releaseCancelled bool) *fixture {
	t.Helper()
	db := testutil.NewDB(t, &events.Event{}, &events.Zone{}, &Booking{})
	eventRepo := events.NewRepository(db)

	svc := NewService(NewRepository(db), eventRepo, config.BookingConfig{
		ReleaseCancelled: releaseCancelled,
		CodeAttempts:     3,
	}).(*service)

	publisher := &capturePublisher{}
	svc.SetPublisher(publisher)

	return &fixture{db: db, svc: svc, events: eventRepo, publish: publisher}
}

func (f *fixture) event(t *testing.T, mode events.CapacityMode, quota int) *events.Event {
	t.Helper()
	event := &events.Event{
		Title:        "Spring concert",
		Date:         "2026-05-10",
		Time:         "19:30:00",
		Venue:        "Main square",
		Status:       events.StatusConfirmed,
		CapacityMode: mode,
		TotalQuota:   quota,
	}
	require.NoError(t, f.db.Create(event).Error)
	return event
}

func (f *fixture) zone(t *testing.T, event *events.Event, name string, quota int) *events.Zone {
	t.Helper()
	zone := &events.Zone{EventID: event.ID, Name: name, Quota: quota}
	require.NoError(t, f.db.Create(zone).Error)
	return zone
}

func units(n int) *int { return &n }

func selfService(event *events.Event, zone *events.Zone, n int) SelfServiceRequest {
	req := SelfServiceRequest{Caller: citizen, RequestedUnits: units(n)}
	if event != nil {
		req.EventID = &event.ID
	}
	if zone != nil {
		req.ZoneID = &zone.ID
	}
	return req
}

func requireRejection(t *testing.T, err error, kind error) *capacity.Rejection {
	t.Helper()
	rej, ok := capacity.AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.ErrorIs(t, rej, kind)
	return rej
}

func TestCreateSelfService_GeneralMode(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 3)
	ctx := context.Background()

	booking, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 2))
	require.NoError(t, err)

	assert.True(t, IsValidCode(booking.Code))
	assert.Equal(t, "eva", booking.Requester)
	assert.Equal(t, "eva", booking.CreatedBy)
	assert.Equal(t, StatusPending, booking.Status)
	assert.Equal(t, "2026-05-10", booking.Date)
	assert.Equal(t, "19:30:00", booking.Time)
	assert.Equal(t, "Main square", booking.Space)
	assert.Equal(t, "Spring concert", booking.EventTitle)

	_, err = f.svc.CreateSelfService(ctx, selfService(event, nil, 2))
	rej := requireRejection(t, err, capacity.ErrInsufficientCapacity)
	assert.Equal(t, 1, rej.Available)
	assert.Equal(t, capacity.FieldUnits, rej.Field)

	_, err = f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)

	assert.Equal(t, []notifications.NotificationType{
		notifications.TypeBookingCreated,
		notifications.TypeBookingCreated,
	}, f.publish.published())
}

func TestCreateSelfService_DefaultsToOneUnit(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)

	req := selfService(event, nil, 0)
	req.RequestedUnits = nil
	req.Space = "  Room B  "

	booking, err := f.svc.CreateSelfService(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, booking.RequestedUnits)
	assert.Equal(t, "Room B", booking.Space)
}

func TestCreate_ZeroQuotaIsUnlimited(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateSelfService(context.Background(), selfService(event, nil, 500))
		require.NoError(t, err)
	}
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t, true)
	general := f.event(t, events.ModeGeneral, 10)
	zoned := f.event(t, events.ModeZones, 0)
	otherZoned := f.event(t, events.ModeZones, 0)
	foreignZone := f.zone(t, otherZoned, "Stalls", 5)
	ownZone := f.zone(t, zoned, "Balcony", 5)
	missing := &events.Event{ID: uuid.New()}
	ghostZone := &events.Zone{ID: uuid.New()}

	tests := []struct {
		name  string
		req   SelfServiceRequest
		kind  error
		field string
	}{
		{"no event", selfService(nil, nil, 1), capacity.ErrMissingEvent, capacity.FieldEvent},
		{"unknown event", selfService(missing, nil, 1), capacity.ErrMissingEvent, capacity.FieldEvent},
		{"zero units", selfService(general, nil, 0), capacity.ErrInvalidUnits, capacity.FieldUnits},
		{"negative units", selfService(general, nil, -2), capacity.ErrInvalidUnits, capacity.FieldUnits},
		{"zone in general mode", selfService(general, ownZone, 1), capacity.ErrZoneNotAllowed, capacity.FieldZone},
		{"zone required", selfService(zoned, nil, 1), capacity.ErrZoneRequired, capacity.FieldZone},
		{"zone of another event", selfService(zoned, foreignZone, 1), capacity.ErrZoneMismatch, capacity.FieldZone},
		{"unknown zone", selfService(zoned, ghostZone, 1), capacity.ErrZoneMismatch, capacity.FieldZone},
		{"zone over quota", selfService(zoned, ownZone, 6), capacity.ErrInsufficientCapacity, capacity.FieldUnits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateSelfService(context.Background(), tt.req)
			rej := requireRejection(t, err, tt.kind)
			assert.Equal(t, tt.field, rej.Field)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&Booking{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.publish.published())
}

func TestCreate_ZonesAreIndependent(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeZones, 0)
	stalls := f.zone(t, event, "Stalls", 2)
	balcony := f.zone(t, event, "Balcony", 1)
	ctx := context.Background()

	_, err := f.svc.CreateSelfService(ctx, selfService(event, stalls, 2))
	require.NoError(t, err)
	booking, err := f.svc.CreateSelfService(ctx, selfService(event, balcony, 1))
	require.NoError(t, err)
	assert.Equal(t, "Balcony", booking.ZoneName)

	_, err = f.svc.CreateSelfService(ctx, selfService(event, stalls, 1))
	rej := requireRejection(t, err, capacity.ErrInsufficientCapacity)
	assert.Equal(t, 0, rej.Available)
}

func TestCreatePrivileged(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 5)
	ctx := context.Background()

	_, err := f.svc.CreatePrivileged(ctx, PrivilegedRequest{Caller: citizen, EventID: &event.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	booking, err := f.svc.CreatePrivileged(ctx, PrivilegedRequest{
		Caller:         staff,
		EventID:        &event.ID,
		Requester:      "neighbours association",
		RequestedUnits: units(4),
		Status:         StatusConfirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, "neighbours association", booking.Requester)
	assert.Equal(t, "marta", booking.CreatedBy)
	assert.Equal(t, StatusConfirmed, booking.Status)

	booking, err = f.svc.CreatePrivileged(ctx, PrivilegedRequest{Caller: staff, EventID: &event.ID})
	require.NoError(t, err)
	assert.Equal(t, "marta", booking.Requester)
	assert.Equal(t, StatusPending, booking.Status)
	assert.Equal(t, 1, booking.RequestedUnits)
}

func TestUpdate_ExcludesOwnUnits(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 3)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 3))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	notes := "wheelchair access"
	updated, err := f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, Notes: &notes, RequestedUnits: units(3)})
	require.NoError(t, err)
	assert.Equal(t, "wheelchair access", updated.Notes)
	assert.Equal(t, created.Code, updated.Code)
	assert.Equal(t, "eva", updated.Requester)

	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, RequestedUnits: units(4)})
	rej := requireRejection(t, err, capacity.ErrInsufficientCapacity)
	assert.Equal(t, 3, rej.Available)

	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: citizen, RequestedUnits: units(1)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdate_MovesToAnotherEvent(t *testing.T) {
	f := newFixture(t, true)
	first := f.event(t, events.ModeGeneral, 0)
	second := f.event(t, events.ModeGeneral, 2)
	require.NoError(t, f.db.Model(second).Updates(map[string]interface{}{"date": "2026-06-01", "time": "10:00:00"}).Error)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(first, nil, 2))
	require.NoError(t, err)

	moved, err := f.svc.Update(ctx, uuid.MustParse(created.ID), PrivilegedRequest{Caller: staff, EventID: &second.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID.String(), moved.EventID)
	assert.Equal(t, "2026-06-01", moved.Date)
	assert.Equal(t, "10:00:00", moved.Time)
}

func TestUpdate_KeepsZoneWhenOmitted(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeZones, 0)
	stalls := f.zone(t, event, "Stalls", 5)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, stalls, 2))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	notes := "near the stage"
	updated, err := f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, Notes: &notes, RequestedUnits: units(2)})
	require.NoError(t, err)
	require.NotNil(t, updated.ZoneID)
	assert.Equal(t, stalls.ID.String(), *updated.ZoneID)
	assert.Equal(t, "near the stage", updated.Notes)

	updated, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, Status: StatusConfirmed})
	require.NoError(t, err)
	require.NotNil(t, updated.ZoneID)
	assert.Equal(t, stalls.ID.String(), *updated.ZoneID)

	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, ClearZone: true})
	requireRejection(t, err, capacity.ErrZoneRequired)

	// the zone belongs to the old event and does not follow a move
	other := f.event(t, events.ModeZones, 0)
	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, EventID: &other.ID})
	requireRejection(t, err, capacity.ErrZoneRequired)

	stored, err := f.svc.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, event.ID, stored.EventID)
	require.NotNil(t, stored.ZoneID)
	assert.Equal(t, stalls.ID, *stored.ZoneID)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 5)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = f.svc.Confirm(ctx, id, citizen)
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := f.svc.Confirm(ctx, id, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = f.svc.Cancel(ctx, id, other)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	cancelled, err := f.svc.Cancel(ctx, id, citizen)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.svc.Confirm(ctx, id, staff)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Update(ctx, id, PrivilegedRequest{Caller: staff, Status: StatusPending})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Confirm(ctx, uuid.New(), staff)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	assert.Equal(t, []notifications.NotificationType{
		notifications.TypeBookingCreated,
		notifications.TypeBookingStatusChanged,
		notifications.TypeBookingStatusChanged,
	}, f.publish.published())
}

func TestReleasePolicy(t *testing.T) {
	tests := []struct {
		name    string
		release bool
		wantErr bool
	}{
		{"cancelled bookings free capacity", true, false},
		{"cancelled bookings keep capacity", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.release)
			event := f.event(t, events.ModeGeneral, 2)
			ctx := context.Background()

			created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 2))
			require.NoError(t, err)
			_, err = f.svc.Cancel(ctx, uuid.MustParse(created.ID), staff)
			require.NoError(t, err)

			_, err = f.svc.CreateSelfService(ctx, selfService(event, nil, 2))
			if tt.wantErr {
				requireRejection(t, err, capacity.ErrInsufficientCapacity)
			} else {
				require.NoError(t, err)
			}

			// either the new booking holds, or the cancelled one still does
			holding, err := f.svc.CountHolding(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), holding)
		})
	}
}

func TestCreate_CodeCollisionsExhaustAttempts(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)
	ctx := context.Background()

	f.svc.codeSource = bytes.NewReader(make([]byte, 1024))

	first, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaaa", first.Code)

	_, err = f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

func TestCreate_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateSelfService(context.Background(), selfService(event, nil, 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, capacity.ErrInsufficientCapacity):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	assert.Equal(t, 7, rejected)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	assert.ErrorIs(t, f.svc.Delete(ctx, id, citizen), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, id, staff))
	assert.ErrorIs(t, f.svc.Delete(ctx, id, staff), ErrBookingNotFound)

	_, err = f.svc.Get(ctx, id, staff)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.Contains(t, f.publish.published(), notifications.TypeBookingDeleted)
}

func TestGetAndList_ScopedToRequester(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)
	ctx := context.Background()

	mine, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)
	theirs, err := f.svc.CreatePrivileged(ctx, PrivilegedRequest{Caller: staff, EventID: &event.ID, Requester: "joan"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, uuid.MustParse(theirs.ID), citizen)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	got, err := f.svc.Get(ctx, uuid.MustParse(mine.ID), citizen)
	require.NoError(t, err)
	assert.Equal(t, mine.Code, got.Code)

	page, err := f.svc.List(ctx, ListFilter{Requester: "joan"}, citizen)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	items := page.Items.([]BookingResponse)
	assert.Equal(t, "eva", items[0].Requester)

	page, err = f.svc.List(ctx, ListFilter{}, staff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)
}

func TestExport(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 2))
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.ErrorIs(t, f.svc.Export(ctx, ListFilter{}, citizen, &buf), ErrForbidden)

	buf.Reset()
	require.NoError(t, f.svc.Export(ctx, ListFilter{}, staff, &buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, utf8BOM)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "code,space,date,time,requester,status,event,zone,requested_units,created", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], created.Code+",Main square,2026-05-10,19:30:00,eva,pending,Spring concert,,2,"))
}

func TestReceipt(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeGeneral, 0)
	ctx := context.Background()

	created, err := f.svc.CreateSelfService(ctx, selfService(event, nil, 1))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	var buf bytes.Buffer
	_, err = f.svc.Receipt(ctx, id, other, &buf)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	buf.Reset()
	name, err := f.svc.Receipt(ctx, id, citizen, &buf)
	require.NoError(t, err)
	assert.Equal(t, "booking-"+created.Code+".pdf", name)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestAvailability(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	general := f.event(t, events.ModeGeneral, 4)
	_, err := f.svc.CreateSelfService(ctx, selfService(general, nil, 3))
	require.NoError(t, err)

	availability, err := f.svc.Availability(ctx, general.ID)
	require.NoError(t, err)
	require.Len(t, availability.Entries, 1)
	assert.Equal(t, 1, availability.Entries[0].Available)
	assert.Equal(t, 3, availability.Entries[0].Committed)

	zoned := f.event(t, events.ModeZones, 0)
	f.zone(t, zoned, "Balcony", 0)
	stalls := f.zone(t, zoned, "Stalls", 10)
	_, err = f.svc.CreateSelfService(ctx, selfService(zoned, stalls, 4))
	require.NoError(t, err)

	availability, err = f.svc.Availability(ctx, zoned.ID)
	require.NoError(t, err)
	require.Len(t, availability.Entries, 2)
	assert.Equal(t, "Balcony", availability.Entries[0].ZoneName)
	assert.True(t, availability.Entries[0].Unlimited)
	assert.Equal(t, "Stalls", availability.Entries[1].ZoneName)
	assert.Equal(t, 6, availability.Entries[1].Available)

	_, err = f.svc.Availability(ctx, uuid.New())
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestKeeperHooks(t *testing.T) {
	f := newFixture(t, true)
	event := f.event(t, events.ModeZones, 0)
	zone := f.zone(t, event, "Stalls", 0)
	ctx := context.Background()

	_, err := f.svc.CreateSelfService(ctx, selfService(event, zone, 1))
	require.NoError(t, err)

	require.NoError(t, f.svc.SyncEventSchedule(ctx, event.ID, "2026-07-01", "18:00:00"))
	page, err := f.svc.List(ctx, ListFilter{EventID: &event.ID}, staff)
	require.NoError(t, err)
	items := page.Items.([]BookingResponse)
	require.Len(t, items, 1)
	assert.Equal(t, "2026-07-01", items[0].Date)
	assert.Equal(t, "18:00:00", items[0].Time)

	require.NoError(t, f.svc.DeleteByZone(ctx, zone.ID))
	holding, err := f.svc.CountHolding(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, holding)
}
