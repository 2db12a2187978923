package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

// defaultMaxRetries は楽観的ロック競合時の既定の試行回数
const defaultMaxRetries = 3

// retryOnConflict は fn が ErrConcurrencyConflict を返す間、最大 attempts 回まで再実行する。
// fn は毎回ストアから読み直すこと
func retryOnConflict(ctx context.Context, attempts int, m *metrics.Metrics, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); !errors.Is(err, event.ErrConcurrencyConflict) {
			return err
		}
		if attempt < attempts {
			m.ObserveRetry()
			logger.Debug("楽観的ロック競合のため再試行します", zap.Int("attempt", attempt))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
