// Package memory はプロセス内で完結するリポジトリ実装。開発・テスト用のストレージとして使う
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
)

// EventRepository はイベントリポジトリのインメモリ実装。
// 保存・取得時に集約をディープコピーし、呼び出し側の変更がストアに漏れないようにする
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]*event.Event
}

// NewEventRepository は新しいEventRepositoryを作成する
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[string]*event.Event)}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ID]; ok {
		return fmt.Errorf("イベント %s は既に存在します", e.ID)
	}
	r.events[e.ID] = e.Clone()
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return e.Clone(), nil
}

// List は条件に一致するイベントを開始日時の昇順で取得する
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	out := r.collect(filter.Matches)
	return paginate(out, filter.Limit, filter.Offset), nil
}

// ListByAttendee はユーザーの確定済み登録を含むイベントを取得する
func (r *EventRepository) ListByAttendee(ctx context.Context, userID string) ([]*event.Event, error) {
	return r.collect(func(e *event.Event) bool { return e.HasConfirmedRegistration(userID) }), nil
}

// ListEndedPublished は終了日時を過ぎた公開中イベントを取得する
func (r *EventRepository) ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	out := r.collect(func(e *event.Event) bool {
		return e.Status == event.StatusPublished && e.HasEnded(now)
	})
	return paginate(out, limit, 0), nil
}

// Update はバージョンが一致する場合のみイベントを置き換える
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.events[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	if current.Version != e.Version {
		return event.ErrConcurrencyConflict
	}
	e.Version++
	r.events[e.ID] = e.Clone()
	return nil
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return event.ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *EventRepository) collect(match func(*event.Event) bool) []*event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*event.Event, 0)
	for _, e := range r.events {
		if match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
