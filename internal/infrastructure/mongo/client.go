// Package mongo は MongoDB をストレージとするリポジトリ実装。イベントは埋め込みデータを含めて1ドキュメントで保存する
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanosuguru/go-event-registration/internal/config"
)

const (
	eventsCollection = "events"
	usersCollection  = "users"
)

// Connect は MongoDB に接続し、データベースを返す
func Connect(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("MongoDB接続に失敗しました: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("MongoDB接続確認に失敗しました: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes は検索・一意制約用のインデックスを作成する
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(eventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "organizer_id", Value: 1}}},
		{Keys: bson.D{{Key: "registrations.user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("イベントのインデックス作成に失敗しました: %w", err)
	}

	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ユーザーのインデックス作成に失敗しました: %w", err)
	}
	return nil
}
