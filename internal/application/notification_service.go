package application

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/email"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

// 登録確認通知の文言
const (
	registrationConfirmationTitle   = "Registration Confirmation"
	registrationConfirmationMessage = "You have successfully registered for %s"
)

// 通知チャネル（メトリクスのラベル）
const (
	channelInbox = "inbox"
	channelEmail = "email"
)

// CreateNotificationInput は管理者が送る通知の内容。Type が空ならシステム通知
type CreateNotificationInput struct {
	Title           string
	Message         string
	Type            string
	RelatedEntityID string
}

// NotificationService は受信箱への通知とメール送信を扱う
type NotificationService struct {
	userRepo user.Repository
	mailer   email.Mailer
	clock    clock.Clock
	metrics  *metrics.Metrics
}

// NewNotificationService は NotificationService を作成する。mailer と m は nil でもよい
func NewNotificationService(userRepo user.Repository, mailer email.Mailer, clk clock.Clock, m *metrics.Metrics) *NotificationService {
	return &NotificationService{userRepo: userRepo, mailer: mailer, clock: clk, metrics: m}
}

// NotifyRegistrationConfirmed は参加登録の確認通知を受信箱に追加し、可能であれば確認メールを送る。
// メール送信の失敗はログとメトリクスに記録するだけで呼び出し側には返さない
func (s *NotificationService) NotifyRegistrationConfirmed(ctx context.Context, recipient user.Actor, eventTitle, eventID string) error {
	message := fmt.Sprintf(registrationConfirmationMessage, eventTitle)
	n := user.NewNotification(
		registrationConfirmationTitle,
		message,
		user.NotificationTypeRegistrationConfirmation,
		eventID,
		s.clock.Now(),
	)
	err := s.userRepo.AppendNotification(ctx, recipient.ID, n)
	s.metrics.ObserveNotification(channelInbox, err)
	if err != nil {
		return fmt.Errorf("通知の保存に失敗しました: %w", err)
	}

	if s.mailer == nil || recipient.Email == "" {
		return nil
	}
	err = s.mailer.Send(ctx, email.Message{
		To:      recipient.Email,
		Subject: registrationConfirmationTitle,
		Text:    message,
	})
	s.metrics.ObserveNotification(channelEmail, err)
	if err != nil {
		logger.Warn("確認メールの送信に失敗しました",
			zap.String("user_id", recipient.ID),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
	return nil
}

// ListNotifications は受信箱の通知を返す。unreadOnly の場合は未読のみ
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]user.Notification, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if unreadOnly {
		return user.Unread(u.Notifications), nil
	}
	if u.Notifications == nil {
		return []user.Notification{}, nil
	}
	return u.Notifications, nil
}

// MarkRead は通知を既読にする
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*user.Notification, error) {
	return s.userRepo.MarkNotificationRead(ctx, userID, notificationID)
}

// MarkAllRead は全通知を既読にする
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.userRepo.MarkAllNotificationsRead(ctx, userID)
}

// Delete は通知を削除する
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	return s.userRepo.DeleteNotification(ctx, userID, notificationID)
}

// CreateNotification は管理者が任意のユーザーの受信箱に通知を追加する
func (s *NotificationService) CreateNotification(ctx context.Context, actor user.Actor, userID string, in CreateNotificationInput) (*user.Notification, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrAdminRequired
	}
	if in.Type == "" {
		in.Type = user.NotificationTypeSystem
	}
	if err := user.ValidateNotification(in.Title, in.Message, in.Type); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	n := user.NewNotification(strings.TrimSpace(in.Title), strings.TrimSpace(in.Message), in.Type, in.RelatedEntityID, s.clock.Now())
	err := s.userRepo.AppendNotification(ctx, userID, n)
	s.metrics.ObserveNotification(channelInbox, err)
	if err != nil {
		return nil, fmt.Errorf("通知の保存に失敗しました: %w", err)
	}
	logger.Info("通知を作成しました",
		zap.String("user_id", userID),
		zap.String("admin_id", actor.ID),
		zap.String("type", in.Type),
	)
	return &n, nil
}
