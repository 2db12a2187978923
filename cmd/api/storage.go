package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/api/handler"
	"github.com/sanosuguru/go-event-registration/internal/config"
	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/memory"
	mongoinfra "github.com/sanosuguru/go-event-registration/internal/infrastructure/mongo"
	"github.com/sanosuguru/go-event-registration/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

const connectTimeout = 10 * time.Second

// storage は STORAGE_DRIVER で選択したリポジトリ一式
type storage struct {
	events event.Repository
	users  user.Repository
	checks []handler.HealthCheck
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("PostgreSQLに接続しました", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		return &storage{
			events: postgres.NewEventRepository(db),
			users:  postgres.NewUserRepository(db),
			checks: []handler.HealthCheck{{
				Name:  "postgres",
				Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
			}},
			close: func() { _ = db.Close() },
		}, nil

	case config.StorageMongo:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, db, err := mongoinfra.Connect(connectCtx, &cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := mongoinfra.EnsureIndexes(connectCtx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info("MongoDBに接続しました", zap.String("db", cfg.Mongo.Database))
		return &storage{
			events: mongoinfra.NewEventRepository(db),
			users:  mongoinfra.NewUserRepository(db),
			checks: []handler.HealthCheck{{
				Name:  "mongo",
				Check: func(ctx context.Context) error { return client.Ping(ctx, nil) },
			}},
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.StorageMemory:
		logger.Warn("インメモリストアで起動します。再起動でデータは失われます")
		return &storage{
			events: memory.NewEventRepository(),
			users:  memory.NewUserRepository(),
			close:  func() {},
		}, nil

	default:
		return nil, fmt.Errorf("不正な STORAGE_DRIVER: %q", cfg.Storage)
	}
}
