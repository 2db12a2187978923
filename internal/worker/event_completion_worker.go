package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

// DefaultCompletionBatchSize は1回の実行で処理するイベント数の既定値
const DefaultCompletionBatchSize = 100

// EventCompleter は終了日時を過ぎた公開中イベントを終了状態にするインターフェース
type EventCompleter interface {
	CompleteEndedEvents(ctx context.Context, batchSize int) (int, error)
}

// EventCompletionWorker は終了したイベントを定期的に COMPLETED へ遷移させるワーカー
type EventCompletionWorker struct {
	eventService EventCompleter
	interval     time.Duration
	batchSize    int
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewEventCompletionWorker は新しいワーカーを作成
func NewEventCompletionWorker(es EventCompleter, interval time.Duration, batchSize int) *EventCompletionWorker {
	if batchSize <= 0 {
		batchSize = DefaultCompletionBatchSize
	}
	return &EventCompletionWorker{
		eventService: es,
		interval:     interval,
		batchSize:    batchSize,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start はワーカーを開始する。起動直後に1回実行し、以降は interval ごとに実行する
func (w *EventCompletionWorker) Start(ctx context.Context) {
	logger.Info("イベント終了ワーカー開始",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	w.run(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("イベント終了ワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("イベント終了ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

// Stop はワーカーを停止
func (w *EventCompletionWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// run は対象が残っている間バッチ単位で終了処理を繰り返す
func (w *EventCompletionWorker) run(ctx context.Context) {
	log := logger.Get()
	log.Debug("終了イベントの処理開始")

	total := 0
	for ctx.Err() == nil {
		count, err := w.eventService.CompleteEndedEvents(ctx, w.batchSize)
		total += count
		if err != nil {
			log.Error("終了イベントの処理失敗", zap.Error(err))
			break
		}
		// 競合でスキップされたイベントは次回に回す
		if count < w.batchSize {
			break
		}
	}

	if total > 0 {
		log.Info("イベントを終了状態に更新", zap.Int("count", total))
	} else {
		log.Debug("終了対象のイベントなし")
	}
}
