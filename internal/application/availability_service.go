package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

// AvailabilityCache は残席情報のキャッシュ
type AvailabilityCache interface {
	Get(ctx context.Context, eventID string) ([]event.TicketAvailability, bool, error)
	Set(ctx context.Context, eventID string, availability []event.TicketAvailability, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

// AvailabilityService はチケット種別ごとの残数を返す。キャッシュの障害時はストアから直接計算する
type AvailabilityService struct {
	eventRepo event.Repository
	cache     AvailabilityCache
	ttl       time.Duration
	clock     clock.Clock
}

// NewAvailabilityService は AvailabilityService を作成する。cache は nil でもよい
func NewAvailabilityService(eventRepo event.Repository, cache AvailabilityCache, ttl time.Duration, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{eventRepo: eventRepo, cache: cache, ttl: ttl, clock: clk}
}

// GetAvailability はイベントの残数一覧を返す。
// 下書きは主催者本人と管理者にだけ見え、それ以外には存在しないものとして扱う。下書きの残数はキャッシュしない
func (s *AvailabilityService) GetAvailability(ctx context.Context, actor user.Actor, eventID string) ([]event.TicketAvailability, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, eventID)
		if err != nil {
			logger.Warn("残数キャッシュの取得に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status == event.StatusDraft {
		if !e.CanManage(actor) {
			return nil, event.ErrEventNotFound
		}
		return e.Availability(s.clock.Now()), nil
	}
	availability := e.Availability(s.clock.Now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, eventID, availability, s.ttl); err != nil {
			logger.Warn("残数キャッシュの保存に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return availability, nil
}

// Invalidate はキャッシュを破棄する。失敗してもTTLで失効するためログのみ
func (s *AvailabilityService) Invalidate(ctx context.Context, eventID string) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("残数キャッシュの破棄に失敗しました", zap.String("event_id", eventID), zap.Error(err))
	}
}
