package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

var (
	testNow       = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	testOrganizer = user.Actor{ID: "org-1", Name: "主催 太郎", Email: "org@example.com", Roles: []user.Role{user.RoleOrganizer}}
	testAttendee  = user.Actor{ID: "user-1", Name: "参加 一郎", Email: "ichiro@example.com", Roles: []user.Role{user.RoleAttendee}}
	testAdmin     = user.Actor{ID: "admin-1", Name: "管理 花子", Email: "admin@example.com", Roles: []user.Role{user.RoleAdmin}}
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, actor user.Actor, d event.Details) (*event.Event, error) {
	args := m.Called(ctx, actor, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, actor user.Actor, in application.ListEventsInput) ([]*event.Event, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, actor user.Actor, id string, d event.Details) (*event.Event, error) {
	args := m.Called(ctx, actor, id, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, actor user.Actor, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockEventService) PublishEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) CancelEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) CompleteEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListMyEvents(ctx context.Context, actor user.Actor) ([]*event.Event, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) ListRegistrations(ctx context.Context, actor user.Actor, eventID, ticketTypeID string) ([]event.Registration, error) {
	args := m.Called(ctx, actor, eventID, ticketTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.Registration), args.Error(1)
}

// MockRegistrationService はRegistrationServiceInterfaceのモック
type MockRegistrationService struct {
	mock.Mock
}

func (m *MockRegistrationService) RegisterForEvent(ctx context.Context, in application.RegisterForEventInput) (*application.RegistrationResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.RegistrationResult), args.Error(1)
}

// MockAvailabilityService はAvailabilityServiceInterfaceのモック
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) GetAvailability(ctx context.Context, actor user.Actor, eventID string) ([]event.TicketAvailability, error) {
	args := m.Called(ctx, actor, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.TicketAvailability), args.Error(1)
}

// MockNotificationService はNotificationServiceInterfaceのモック
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]user.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*user.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockNotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationService) CreateNotification(ctx context.Context, actor user.Actor, userID string, in application.CreateNotificationInput) (*user.Notification, error) {
	args := m.Called(ctx, actor, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Notification), args.Error(1)
}

// MockProfileService はProfileServiceInterfaceのモック
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID string, p user.ProfileUpdate) (*user.User, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

// MockUserService はUserServiceInterfaceのモック
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListUsers(ctx context.Context, actor user.Actor, in application.ListUsersInput) ([]*user.User, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*user.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, actor user.Actor, userID string) (*user.User, error) {
	args := m.Called(ctx, actor, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, actor user.Actor, userID string, in application.UpdateUserInput) (*user.User, error) {
	args := m.Called(ctx, actor, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actor user.Actor, userID string) error {
	args := m.Called(ctx, actor, userID)
	return args.Error(0)
}

// serve はテスト用Echoにリクエストを流してレスポンスを返す
func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newTestEvent() *event.Event {
	return &event.Event{
		ID:            "ev-1",
		Title:         "Go カンファレンス",
		Location:      "東京",
		StartDate:     testNow.Add(24 * time.Hour),
		EndDate:       testNow.Add(32 * time.Hour),
		OrganizerID:   testOrganizer.ID,
		OrganizerName: testOrganizer.Name,
		Status:        event.StatusPublished,
		TicketTypes: []event.TicketType{
			{ID: "tt-1", Name: "一般", Price: 5000, Quantity: 100, Sold: 2, IsAvailable: true},
		},
		Registrations: []event.Registration{
			{ID: "reg-1", UserID: "u-a", Status: event.RegistrationConfirmed, TicketTypeID: "tt-1"},
			{ID: "reg-2", UserID: "u-b", Status: event.RegistrationConfirmed, TicketTypeID: "tt-1"},
			{ID: "reg-3", UserID: "u-c", Status: event.RegistrationCancelled, TicketTypeID: "tt-1"},
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
		Version:   4,
	}
}
