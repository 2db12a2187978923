package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// 通知種別
const (
	NotificationTypeRegistrationConfirmation = "REGISTRATION_CONFIRMATION"
	NotificationTypeEventReminder            = "EVENT_REMINDER"
	NotificationTypeSystem                   = "SYSTEM"
)

// ValidateNotification は管理者が作成する通知の内容を検証する
func ValidateNotification(title, message, notificationType string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return ErrNotificationContentRequired
	}
	switch notificationType {
	case NotificationTypeRegistrationConfirmation, NotificationTypeEventReminder, NotificationTypeSystem:
		return nil
	default:
		return ErrUnknownNotificationType
	}
}

// Notification はユーザーの受信箱に埋め込まれる通知
type Notification struct {
	ID              string    `json:"id" bson:"id"`
	Title           string    `json:"title" bson:"title"`
	Message         string    `json:"message" bson:"message"`
	Read            bool      `json:"read" bson:"read"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	Type            string    `json:"type" bson:"type"`
	RelatedEntityID string    `json:"related_entity_id,omitempty" bson:"related_entity_id,omitempty"`
}

// NewNotification は未読の通知を作成する
func NewNotification(title, message, notificationType, relatedEntityID string, now time.Time) Notification {
	return Notification{
		ID:              uuid.NewString(),
		Title:           title,
		Message:         message,
		Read:            false,
		CreatedAt:       now,
		Type:            notificationType,
		RelatedEntityID: relatedEntityID,
	}
}

// Unread は未読の通知だけを返す
func Unread(notifications []Notification) []Notification {
	out := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// FindNotification はIDから通知の位置を返す。見つからない場合は -1
func FindNotification(notifications []Notification, id string) int {
	for i := range notifications {
		if notifications[i].ID == id {
			return i
		}
	}
	return -1
}
