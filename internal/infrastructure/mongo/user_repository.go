package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// userDocument はユーザーのドキュメント表現
type userDocument struct {
	ID            string              `bson:"_id"`
	Email         string              `bson:"email"`
	FirstName     string              `bson:"first_name"`
	LastName      string              `bson:"last_name"`
	PhoneNumber   string              `bson:"phone_number"`
	Roles         []string            `bson:"roles"`
	Notifications []user.Notification `bson:"notifications"`
	CreatedAt     time.Time           `bson:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at"`
}

func (d *userDocument) toEntity() *user.User {
	return &user.User{
		ID:            d.ID,
		Email:         d.Email,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		PhoneNumber:   d.PhoneNumber,
		Roles:         user.ParseRoles(d.Roles),
		Notifications: nonNil(d.Notifications),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// UserRepository はユーザーリポジトリのMongoDB実装
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository はUserRepositoryを作成する
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// Create は新しいユーザーを作成する
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	doc := &userDocument{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		PhoneNumber:   u.PhoneNumber,
		Roles:         user.RoleStrings(u.Roles),
		Notifications: nonNil(u.Notifications),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("ユーザー作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからユーザーを取得する
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail はメールアドレスからユーザーを取得する
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, q bson.M) (*user.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, q).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザー取得に失敗しました: %w", err)
	}
	return doc.toEntity(), nil
}

// List は条件に一致するユーザーを作成日時の昇順で取得する
func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	cur, err := r.coll.Find(ctx, userListQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧取得に失敗しました: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ユーザー一覧取得に失敗しました: %w", err)
	}
	users := make([]*user.User, len(docs))
	for i := range docs {
		users[i] = docs[i].toEntity()
	}
	return users, nil
}

// userListQuery は ListFilter を MongoDB のクエリに変換する
func userListQuery(filter user.ListFilter) bson.M {
	q := bson.M{}
	if filter.Name != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Name), "$options": "i"}
		q["$or"] = bson.A{bson.M{"first_name": pattern}, bson.M{"last_name": pattern}}
	}
	if filter.Role != "" {
		q["roles"] = string(filter.Role)
	}
	return q
}

// Update はプロフィールとロールを保存する。受信箱は $set の対象にしない
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{
			"first_name":   u.FirstName,
			"last_name":    u.LastName,
			"phone_number": u.PhoneNumber,
			"roles":        user.RoleStrings(u.Roles),
			"updated_at":   u.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("ユーザー更新に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Delete はユーザーを削除する
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("ユーザー削除に失敗しました: %w", err)
	}
	if result.DeletedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// AppendNotification は受信箱に通知を追加する（$push でアトミックに追記）
func (r *UserRepository) AppendNotification(ctx context.Context, userID string, n user.Notification) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"notifications": n}, "$set": bson.M{"updated_at": n.CreatedAt}},
	)
	if err != nil {
		return fmt.Errorf("通知の追加に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// MarkNotificationRead は通知を既読にする
func (r *UserRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*user.Notification, error) {
	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "notifications.id": notificationID},
		bson.M{"$set": bson.M{"notifications.$.read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missing(ctx, userID)
		}
		return nil, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	i := user.FindNotification(doc.Notifications, notificationID)
	if i < 0 {
		return nil, user.ErrNotificationNotFound
	}
	n := doc.Notifications[i]
	return &n, nil
}

// MarkAllNotificationsRead は全通知を既読にする
func (r *UserRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"notifications.$[].read": true}},
	)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// DeleteNotification は通知を削除する
func (r *UserRepository) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "notifications.id": notificationID},
		bson.M{"$pull": bson.M{"notifications": bson.M{"id": notificationID}}},
	)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missing(ctx, userID)
	}
	return nil
}

// missing はユーザー自体が無いのか通知が無いのかを判定する
func (r *UserRepository) missing(ctx context.Context, userID string) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("ユーザー確認に失敗しました: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return user.ErrNotificationNotFound
}

// インターフェースを満たしているか確認
var _ user.Repository = (*UserRepository)(nil)
