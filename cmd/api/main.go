package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-event-registration/internal/api/handler"
	"github.com/sanosuguru/go-event-registration/internal/api/router"
	"github.com/sanosuguru/go-event-registration/internal/application"
	"github.com/sanosuguru/go-event-registration/internal/config"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/auth"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/email"
	redisinfra "github.com/sanosuguru/go-event-registration/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-registration/internal/pkg/tracing"
	"github.com/sanosuguru/go-event-registration/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger.Set(logger.NewLogger(cfg.Env, cfg.LogLevel))
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("サーバーが異常終了しました", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("トレーシングの初期化に失敗しました: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("トレーシングの終了に失敗しました", zap.Error(err))
		}
	}()

	m := metrics.Init()
	clk := clock.NewSystem()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()
	checks := store.checks

	// Redis 無効時は nil のインターフェースを渡してロックとキャッシュを使わない
	var (
		cache  application.AvailabilityCache
		locker application.RegistrationLocker
	)
	if cfg.Redis.Enabled {
		rdb := redisinfra.NewClient(&cfg.Redis)
		defer func() { _ = rdb.Close() }()
		if err := redisinfra.Ping(ctx, rdb); err != nil {
			logger.Warn("Redisに接続できません。接続が回復するまでロックなしで登録を処理します", zap.Error(err))
		}
		cache = redisinfra.NewAvailabilityCache(rdb)
		locker = redisinfra.NewRegistrationLocker(redisinfra.NewLockManager(rdb), redisinfra.RegistrationLockOptions{
			TTL:        cfg.Registration.LockTTL,
			MaxRetries: cfg.Registration.LockRetries,
			RetryDelay: cfg.Registration.LockRetryDelay,
		}, m)
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, rdb) },
		})
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET が未設定です。全てのAPIリクエストが認証エラーになります")
	}
	mailer := email.NewMailer(&cfg.Mail)
	logger.Info("メール送信設定", zap.String("provider", mailer.Provider()))

	availability := application.NewAvailabilityService(store.events, cache, cfg.Registration.CacheTTL, clk)
	notifications := application.NewNotificationService(store.users, mailer, clk, m)
	identity := application.NewIdentityService(store.users, clk)
	events := application.NewEventService(store.events, availability, clk, m)
	registrations := application.NewRegistrationService(store.events,
		application.WithLocker(locker),
		application.WithNotifier(notifications),
		application.WithAvailability(availability),
		application.WithClock(clk),
		application.WithMetrics(m),
		application.WithMaxRetries(cfg.Registration.MaxRetries),
	)

	e := router.New(router.Deps{
		Verifier:      auth.NewVerifier(cfg.Auth.JWTSecret),
		Resolver:      identity,
		Events:        events,
		Registrations: registrations,
		Availability:  availability,
		Notifications: notifications,
		Profiles:      identity,
		Users:         application.NewUserService(store.users, clk),
		HealthChecks:  checks,
		Clock:         clk,
		Metrics:       m,
		MetricsAuth:   cfg.Metrics,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage),
			zap.Bool("redis", cfg.Redis.Enabled),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	})
	if cfg.Worker.CompletionEnabled {
		w := worker.NewEventCompletionWorker(events, cfg.Worker.CompletionInterval, worker.DefaultCompletionBatchSize)
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーをシャットダウンしています...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
		}
		return nil
	})

	return g.Wait()
}
