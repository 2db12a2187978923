package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.NewString()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	lastErr := ErrLockNotAcquired
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// RegistrationLockOptions はイベント単位の登録ロックの設定
type RegistrationLockOptions struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// RegistrationLocker はイベントごとに参加登録を直列化する
type RegistrationLocker struct {
	manager *LockManager
	opts    RegistrationLockOptions
	metrics *metrics.Metrics
}

// NewRegistrationLocker は RegistrationLocker を作成する。m は nil でもよい
func NewRegistrationLocker(manager *LockManager, opts RegistrationLockOptions, m *metrics.Metrics) *RegistrationLocker {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &RegistrationLocker{manager: manager, opts: opts, metrics: m}
}

// RegistrationLockKey は lock: プレフィックスを除いたイベントのロックキーを返す
func RegistrationLockKey(eventID string) string {
	return fmt.Sprintf("event:%s:registration", eventID)
}

// Lock はイベントのロックを取得し、解放関数を返す
func (r *RegistrationLocker) Lock(ctx context.Context, eventID string) (func(context.Context) error, error) {
	start := time.Now()
	lock, err := r.manager.AcquireLockWithRetry(ctx, RegistrationLockKey(eventID), r.opts.TTL, r.opts.MaxRetries, r.opts.RetryDelay)
	r.metrics.ObserveLock("acquire", start, err)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		start := time.Now()
		err := lock.Release(ctx)
		r.metrics.ObserveLock("release", start, err)
		return err
	}, nil
}
