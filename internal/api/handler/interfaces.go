package handler

import (
	"context"

	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, actor user.Actor, d event.Details) (*event.Event, error)
	GetEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error)
	ListEvents(ctx context.Context, actor user.Actor, in application.ListEventsInput) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, actor user.Actor, id string, d event.Details) (*event.Event, error)
	DeleteEvent(ctx context.Context, actor user.Actor, id string) error
	PublishEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error)
	CancelEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error)
	CompleteEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error)
	ListMyEvents(ctx context.Context, actor user.Actor) ([]*event.Event, error)
	ListRegistrations(ctx context.Context, actor user.Actor, eventID, ticketTypeID string) ([]event.Registration, error)
}

// RegistrationServiceInterface は参加登録サービスのインターフェース
type RegistrationServiceInterface interface {
	RegisterForEvent(ctx context.Context, in application.RegisterForEventInput) (*application.RegistrationResult, error)
}

// AvailabilityServiceInterface は販売状況サービスのインターフェース
type AvailabilityServiceInterface interface {
	GetAvailability(ctx context.Context, actor user.Actor, eventID string) ([]event.TicketAvailability, error)
}

// NotificationServiceInterface は通知サービスのインターフェース
type NotificationServiceInterface interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]user.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*user.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, notificationID string) error
	CreateNotification(ctx context.Context, actor user.Actor, userID string, in application.CreateNotificationInput) (*user.Notification, error)
}

// ProfileServiceInterface は本人のプロフィールのインターフェース
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*user.User, error)
	UpdateProfile(ctx context.Context, userID string, p user.ProfileUpdate) (*user.User, error)
}

// UserServiceInterface は管理者向けユーザー管理のインターフェース
type UserServiceInterface interface {
	ListUsers(ctx context.Context, actor user.Actor, in application.ListUsersInput) ([]*user.User, error)
	GetUser(ctx context.Context, actor user.Actor, userID string) (*user.User, error)
	UpdateUser(ctx context.Context, actor user.Actor, userID string, in application.UpdateUserInput) (*user.User, error)
	DeleteUser(ctx context.Context, actor user.Actor, userID string) error
}
