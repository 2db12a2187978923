package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

// 一覧取得の件数
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// EventService はイベントカタログとライフサイクルを扱う
type EventService struct {
	eventRepo    event.Repository
	availability *AvailabilityService
	clock        clock.Clock
	metrics      *metrics.Metrics
}

// NewEventService は EventService を作成する。availability と m は nil でもよい
func NewEventService(eventRepo event.Repository, availability *AvailabilityService, clk clock.Clock, m *metrics.Metrics) *EventService {
	return &EventService{eventRepo: eventRepo, availability: availability, clock: clk, metrics: m}
}

// CreateEvent は下書き状態のイベントを作成する。主催者または管理者のみ
func (s *EventService) CreateEvent(ctx context.Context, actor user.Actor, d event.Details) (*event.Event, error) {
	if !actor.CanOrganize() {
		return nil, event.ErrPermissionDenied
	}
	e := event.NewEvent(d, actor, s.clock.Now())
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	logger.Event(e.ID).Info("イベントを作成しました", zap.String("organizer_id", actor.ID))
	return e, nil
}

// GetEvent はイベントを取得する。下書きは主催者と管理者にのみ見える
func (s *EventService) GetEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == event.StatusDraft && !e.CanManage(actor) {
		return nil, event.ErrEventNotFound
	}
	return e, nil
}

// ListEventsInput は一覧取得の条件
type ListEventsInput struct {
	Status      event.Status
	Category    string
	OrganizerID string
	Query       string
	Upcoming    bool
	Limit       int
	Offset      int
}

// ListEvents はイベント一覧を取得する。
// 管理者と自分のイベントを絞り込む主催者以外には公開中のイベントだけを返す
func (s *EventService) ListEvents(ctx context.Context, actor user.Actor, in ListEventsInput) ([]*event.Event, error) {
	filter := event.ListFilter{
		Status:      in.Status,
		Category:    in.Category,
		OrganizerID: in.OrganizerID,
		Query:       in.Query,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	privileged := actor.IsAdmin() || (in.OrganizerID != "" && in.OrganizerID == actor.ID)
	if !privileged && (filter.Status == "" || filter.Status == event.StatusDraft) {
		filter.Status = event.StatusPublished
	}
	if in.Upcoming {
		filter.StartsAfter = s.clock.Now()
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.eventRepo.List(ctx, filter)
}

// UpdateEvent はイベントの内容を更新する。主催者本人または管理者のみ
func (s *EventService) UpdateEvent(ctx context.Context, actor user.Actor, id string, d event.Details) (*event.Event, error) {
	e, err := s.modify(ctx, actor, id, func(e *event.Event) error {
		if err := e.ApplyDetails(d, s.clock.Now()); err != nil {
			if isValidationError(err) {
				return fmt.Errorf("%w: %w", ErrValidation, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.availability.Invalidate(ctx, id)
	return e, nil
}

// DeleteEvent はイベントを削除する。主催者本人または管理者のみ
func (s *EventService) DeleteEvent(ctx context.Context, actor user.Actor, id string) error {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !e.CanManage(actor) {
		return event.ErrPermissionDenied
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.availability.Invalidate(ctx, id)
	logger.Event(id).Info("イベントを削除しました", zap.String("actor_id", actor.ID))
	return nil
}

// PublishEvent は下書きのイベントを公開する
func (s *EventService) PublishEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, actor, id, (*event.Event).Publish)
}

// CancelEvent は公開中のイベントを中止する
func (s *EventService) CancelEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, actor, id, (*event.Event).Cancel)
}

// CompleteEvent は公開中のイベントを終了状態にする
func (s *EventService) CompleteEvent(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, actor, id, (*event.Event).Complete)
}

func (s *EventService) transition(ctx context.Context, actor user.Actor, id string, apply func(*event.Event, user.Actor, time.Time) error) (*event.Event, error) {
	e, err := s.modify(ctx, actor, id, func(e *event.Event) error {
		return apply(e, actor, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.availability.Invalidate(ctx, id)
	logger.Event(id).Info("イベントの状態を変更しました", zap.String("status", string(e.Status)), zap.String("actor_id", actor.ID))
	return e, nil
}

// modify は権限を確認した上で集約を変更して保存する。バージョン競合時は読み直して再試行する
func (s *EventService) modify(ctx context.Context, actor user.Actor, id string, fn func(*event.Event) error) (*event.Event, error) {
	var updated *event.Event
	err := retryOnConflict(ctx, defaultMaxRetries, s.metrics, func(int) error {
		e, err := s.eventRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !e.CanManage(actor) {
			return event.ErrPermissionDenied
		}
		if err := fn(e); err != nil {
			return err
		}
		if err := s.eventRepo.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListMyEvents は参加者として確定済み登録があるイベントを返す
func (s *EventService) ListMyEvents(ctx context.Context, actor user.Actor) ([]*event.Event, error) {
	return s.eventRepo.ListByAttendee(ctx, actor.ID)
}

// ListRegistrations はイベントの参加登録一覧を返す。ticketTypeID を指定するとその種別だけに絞る。
// 主催者本人または管理者のみ
func (s *EventService) ListRegistrations(ctx context.Context, actor user.Actor, eventID, ticketTypeID string) ([]event.Registration, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.CanManage(actor) {
		return nil, event.ErrPermissionDenied
	}
	if ticketTypeID != "" {
		if _, err := e.FindTicketType(ticketTypeID); err != nil {
			return nil, err
		}
		return e.RegistrationsByTicketType(ticketTypeID), nil
	}
	out := make([]event.Registration, len(e.Registrations))
	copy(out, e.Registrations)
	return out, nil
}

// CompleteEndedEvents は終了日時を過ぎた公開中イベントを終了状態にし、処理件数を返す。
// 競合したイベントは次回の実行で再度処理される
func (s *EventService) CompleteEndedEvents(ctx context.Context, batchSize int) (int, error) {
	now := s.clock.Now()
	events, err := s.eventRepo.ListEndedPublished(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("終了イベントの取得に失敗しました: %w", err)
	}

	completed := 0
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if err := e.TransitionTo(event.StatusCompleted, now); err != nil {
			logger.Event(e.ID).Warn("イベントを終了状態にできませんでした", zap.Error(err))
			continue
		}
		if err := s.eventRepo.Update(ctx, e); err != nil {
			logger.Event(e.ID).Warn("イベントの終了処理に失敗しました", zap.Error(err))
			continue
		}
		s.availability.Invalidate(ctx, e.ID)
		completed++
	}
	s.metrics.ObserveCompleted(completed)
	return completed, nil
}

// isValidationError は入力内容に起因するドメインエラーかを返す
func isValidationError(err error) bool {
	for _, target := range []error{
		event.ErrEventTitleRequired,
		event.ErrInvalidEventTime,
		event.ErrTicketTypeNameRequired,
		event.ErrInvalidTicketPrice,
		event.ErrInvalidTicketQuantity,
		event.ErrInvalidSaleWindow,
		event.ErrQuantityBelowSold,
		event.ErrDuplicateTicketTypeID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
