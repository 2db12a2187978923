package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// UserRepository はユーザーリポジトリのインメモリ実装
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// NewUserRepository は新しいUserRepositoryを作成する
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*user.User)}
}

// Create は新しいユーザーを作成する
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return user.ErrUserAlreadyExists
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.ErrUserAlreadyExists
		}
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

// GetByID はIDからユーザーを取得する
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetByEmail はメールアドレスからユーザーを取得する
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, user.ErrUserNotFound
}

// List は条件に一致するユーザーを作成日時の昇順で取得する
func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*user.User, 0)
	for _, u := range r.users {
		if filter.Matches(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

// Update はプロフィールとロールを保存する
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return user.ErrUserNotFound
	}
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.PhoneNumber = u.PhoneNumber
	stored.Roles = append([]user.Role(nil), u.Roles...)
	stored.UpdatedAt = u.UpdatedAt
	return nil
}

// Delete はユーザーを削除する
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return user.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// AppendNotification は受信箱に通知を追加する
func (r *UserRepository) AppendNotification(ctx context.Context, userID string, n user.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Notifications = append(u.Notifications, n)
	u.UpdatedAt = n.CreatedAt
	return nil
}

// MarkNotificationRead は通知を既読にする
func (r *UserRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*user.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	i := user.FindNotification(u.Notifications, notificationID)
	if i < 0 {
		return nil, user.ErrNotificationNotFound
	}
	u.Notifications[i].Read = true
	n := u.Notifications[i]
	return &n, nil
}

// MarkAllNotificationsRead は全通知を既読にする
func (r *UserRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	for i := range u.Notifications {
		u.Notifications[i].Read = true
	}
	return nil
}

// DeleteNotification は通知を削除する
func (r *UserRepository) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	i := user.FindNotification(u.Notifications, notificationID)
	if i < 0 {
		return user.ErrNotificationNotFound
	}
	u.Notifications = append(u.Notifications[:i], u.Notifications[i+1:]...)
	return nil
}

func cloneUser(u *user.User) *user.User {
	c := *u
	c.Roles = append([]user.Role(nil), u.Roles...)
	c.Notifications = append([]user.Notification(nil), u.Notifications...)
	return &c
}
