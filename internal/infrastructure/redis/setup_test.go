package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-registration/internal/config"
)

// setupTestRedis はローカルのRedisに接続する。接続できない場合はテストをスキップする
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379", DB: 15})
	if err := Ping(context.Background(), client); err != nil {
		_ = client.Close()
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
