package user

import (
	"context"
	"strings"
)

// ListFilter はユーザー一覧の絞り込み条件
type ListFilter struct {
	Name   string // 姓または名の部分一致（大文字小文字を区別しない）
	Role   Role
	Limit  int
	Offset int
}

// Matches はユーザーが条件に一致するかを返す。ページングは含まない
func (f ListFilter) Matches(u *User) bool {
	if f.Role != "" && !u.HasRole(f.Role) {
		return false
	}
	if f.Name != "" {
		name := strings.ToLower(f.Name)
		if !strings.Contains(strings.ToLower(u.FirstName), name) && !strings.Contains(strings.ToLower(u.LastName), name) {
			return false
		}
	}
	return true
}

// Repository はユーザーリポジトリのインターフェース
type Repository interface {
	// Create は新しいユーザーを作成する
	Create(ctx context.Context, u *User) error
	// GetByID はIDからユーザーを取得する
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail はメールアドレスからユーザーを取得する
	GetByEmail(ctx context.Context, email string) (*User, error)
	// List は条件に一致するユーザーを作成日時の昇順で取得する
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	// Update はプロフィールとロールを保存する。受信箱は変更しない
	Update(ctx context.Context, u *User) error
	// Delete はユーザーを削除する
	Delete(ctx context.Context, id string) error
	// AppendNotification は受信箱に通知を追加する（ストア側でアトミックに追記）
	AppendNotification(ctx context.Context, userID string, n Notification) error
	// MarkNotificationRead は通知を既読にする
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (*Notification, error)
	// MarkAllNotificationsRead は全通知を既読にする
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	// DeleteNotification は通知を削除する
	DeleteNotification(ctx context.Context, userID, notificationID string) error
}
