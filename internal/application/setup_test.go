package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/email"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

var (
	organizer = user.Actor{ID: "org-1", Name: "主催 太郎", Email: "org@example.com", Roles: []user.Role{user.RoleOrganizer}}
	otherOrg  = user.Actor{ID: "org-2", Name: "主催 次郎", Email: "org2@example.com", Roles: []user.Role{user.RoleOrganizer}}
	admin     = user.Actor{ID: "admin-1", Name: "管理 花子", Email: "admin@example.com", Roles: []user.Role{user.RoleAdmin}}
	attendeeA = user.Actor{ID: "user-a", Name: "参加 一郎", Email: "a@example.com", Roles: []user.Role{user.RoleAttendee}}
	attendeeB = user.Actor{ID: "user-b", Name: "参加 二郎", Email: "b@example.com", Roles: []user.Role{user.RoleAttendee}}
)

// testEnv はインメモリストアで組み立てたサービス群
type testEnv struct {
	events        *memory.EventRepository
	users         *memory.UserRepository
	clock         *clock.Fake
	metrics       *metrics.Metrics
	notifications *NotificationService
	availability  *AvailabilityService
	eventService  *EventService
	registrations *RegistrationService
}

func newTestEnv(t *testing.T, opts ...RegistrationOption) *testEnv {
	t.Helper()
	events := memory.NewEventRepository()
	users := memory.NewUserRepository()
	clk := clock.NewFake(testNow)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	notifications := NewNotificationService(users, email.NoopMailer{}, clk, m)
	availability := NewAvailabilityService(events, nil, time.Minute, clk)

	base := []RegistrationOption{
		WithClock(clk),
		WithMetrics(m),
		WithNotifier(notifications),
		WithAvailability(availability),
	}
	env := &testEnv{
		events:        events,
		users:         users,
		clock:         clk,
		metrics:       m,
		notifications: notifications,
		availability:  availability,
		eventService:  NewEventService(events, availability, clk, m),
		registrations: NewRegistrationService(events, append(base, opts...)...),
	}
	for _, a := range []user.Actor{organizer, otherOrg, admin, attendeeA, attendeeB} {
		require.NoError(t, users.Create(context.Background(), &user.User{ID: a.ID, Email: a.Email, Roles: a.Roles}))
	}
	return env
}

func testDetails(tickets ...event.TicketType) event.Details {
	return event.Details{
		Title:       "Go カンファレンス",
		Location:    "東京",
		StartDate:   testNow.Add(24 * time.Hour),
		EndDate:     testNow.Add(32 * time.Hour),
		Category:    "TECH",
		TicketTypes: tickets,
	}
}

func ticket(id string, quantity int) event.TicketType {
	return event.TicketType{ID: id, Name: "一般", Price: 10, Quantity: quantity, IsAvailable: true}
}

// draftEvent は主催者の下書きイベントを作成する
func (env *testEnv) draftEvent(t *testing.T, tickets ...event.TicketType) *event.Event {
	t.Helper()
	e, err := env.eventService.CreateEvent(context.Background(), organizer, testDetails(tickets...))
	require.NoError(t, err)
	return e
}

// publishedEvent は公開済みのイベントを作成する
func (env *testEnv) publishedEvent(t *testing.T, tickets ...event.TicketType) *event.Event {
	t.Helper()
	e := env.draftEvent(t, tickets...)
	e, err := env.eventService.PublishEvent(context.Background(), organizer, e.ID)
	require.NoError(t, err)
	return e
}

func (env *testEnv) reload(t *testing.T, id string) *event.Event {
	t.Helper()
	e, err := env.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

// MockNotifier は RegistrationNotifier のモック
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRegistrationConfirmed(ctx context.Context, recipient user.Actor, eventTitle, eventID string) error {
	args := m.Called(ctx, recipient, eventTitle, eventID)
	return args.Error(0)
}

// MockMailer は email.Mailer のモック
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMailer) Provider() string { return "mock" }

// fakeLocker はプロセス内のミューテックスで登録を直列化する
type fakeLocker struct {
	mu       sync.Mutex
	err      error
	locked   atomic.Int32
	released atomic.Int32
}

func (l *fakeLocker) Lock(ctx context.Context, eventID string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locked.Add(1)
	return func(context.Context) error {
		l.released.Add(1)
		l.mu.Unlock()
		return nil
	}, nil
}

// conflictingRepo は指定回数だけ更新をバージョン競合で失敗させる
type conflictingRepo struct {
	*memory.EventRepository
	failures int32
	updates  atomic.Int32
}

func (r *conflictingRepo) Update(ctx context.Context, e *event.Event) error {
	if r.updates.Add(1) <= r.failures {
		return event.ErrConcurrencyConflict
	}
	return r.EventRepository.Update(ctx, e)
}

// fakeCache は AvailabilityCache のインメモリ実装
type fakeCache struct {
	mu          sync.Mutex
	data        map[string][]event.TicketAvailability
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]event.TicketAvailability)}
}

func (c *fakeCache) Get(ctx context.Context, eventID string) ([]event.TicketAvailability, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[eventID]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, eventID string, availability []event.TicketAvailability, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[eventID] = availability
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, eventID)
	c.invalidated = append(c.invalidated, eventID)
	return nil
}
