package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
)

// AvailabilityCache はイベントのチケット販売状況をキャッシュする
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get はキャッシュされた販売状況を返す。キャッシュが無い場合は found が false
func (c *AvailabilityCache) Get(ctx context.Context, eventID string) (availability []event.TicketAvailability, found bool, err error) {
	raw, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	if err := json.Unmarshal(raw, &availability); err != nil {
		return nil, false, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return availability, true, nil
}

// Set は販売状況をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, eventID string, availability []event.TicketAvailability, ttl time.Duration) error {
	raw, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey(eventID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, availabilityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availabilityKey(eventID string) string {
	return fmt.Sprintf("event:%s:availability", eventID)
}
