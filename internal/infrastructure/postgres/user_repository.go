package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

const userColumns = `id, email, first_name, last_name, phone_number, roles, notifications, created_at, updated_at`

// userRow はDBの行を表す構造体
type userRow struct {
	ID            string         `db:"id"`
	Email         string         `db:"email"`
	FirstName     string         `db:"first_name"`
	LastName      string         `db:"last_name"`
	PhoneNumber   string         `db:"phone_number"`
	Roles         pq.StringArray `db:"roles"`
	Notifications types.JSONText `db:"notifications"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *userRow) toEntity() (*user.User, error) {
	u := &user.User{
		ID:          r.ID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Roles:       user.ParseRoles(r.Roles),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	notifications, err := decodeNotifications(r.Notifications)
	if err != nil {
		return nil, err
	}
	u.Notifications = notifications
	return u, nil
}

func decodeNotifications(raw types.JSONText) ([]user.Notification, error) {
	notifications := []user.Notification{}
	if len(raw) == 0 {
		return notifications, nil
	}
	if err := raw.Unmarshal(&notifications); err != nil {
		return nil, fmt.Errorf("通知の復元に失敗しました: %w", err)
	}
	return notifications, nil
}

// UserRepository はユーザーリポジトリのPostgreSQL実装
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository はUserRepositoryを作成する
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create は新しいユーザーを作成する
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	notifications, err := marshalJSON(u.Notifications, "[]")
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (id, email, first_name, last_name, phone_number, roles, notifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.FirstName, u.LastName, u.PhoneNumber,
		pq.Array(user.RoleStrings(u.Roles)), notifications, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("ユーザー作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからユーザーを取得する
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail はメールアドレスからユーザーを取得する
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*user.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザー取得に失敗しました: %w", err)
	}
	return row.toEntity()
}

// List は条件に一致するユーザーを作成日時の昇順で取得する
func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d)", n, n))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("$%d = ANY(roles)", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + userColumns + ` FROM users`)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at ASC, id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("ユーザー一覧取得に失敗しました: %w", err)
	}
	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Update はプロフィールとロールを保存する。受信箱の列には触れない
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, phone_number = $4, roles = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.PhoneNumber, pq.Array(user.RoleStrings(u.Roles)), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザー更新に失敗しました: %w", err)
	}
	return requireAffected(result, user.ErrUserNotFound)
}

// Delete はユーザーを削除する
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ユーザー削除に失敗しました: %w", err)
	}
	return requireAffected(result, user.ErrUserNotFound)
}

// AppendNotification は受信箱に通知を追加する。JSONB の連結で1文でアトミックに追記する
func (r *UserRepository) AppendNotification(ctx context.Context, userID string, n user.Notification) error {
	payload, err := marshalJSON([]user.Notification{n}, "[]")
	if err != nil {
		return err
	}
	query := `UPDATE users SET notifications = notifications || $2::jsonb, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, userID, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("通知の追加に失敗しました: %w", err)
	}
	return requireAffected(result, user.ErrUserNotFound)
}

// MarkNotificationRead は通知を既読にする
func (r *UserRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*user.Notification, error) {
	var marked user.Notification
	err := r.modifyNotifications(ctx, userID, func(notifications []user.Notification) ([]user.Notification, error) {
		i := user.FindNotification(notifications, notificationID)
		if i < 0 {
			return nil, user.ErrNotificationNotFound
		}
		notifications[i].Read = true
		marked = notifications[i]
		return notifications, nil
	})
	if err != nil {
		return nil, err
	}
	return &marked, nil
}

// MarkAllNotificationsRead は全通知を既読にする
func (r *UserRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET notifications = COALESCE(
			(SELECT jsonb_agg(n || '{"read": true}'::jsonb) FROM jsonb_array_elements(notifications) AS n),
			'[]'::jsonb
		)
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	return requireAffected(result, user.ErrUserNotFound)
}

// DeleteNotification は通知を削除する
func (r *UserRepository) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	return r.modifyNotifications(ctx, userID, func(notifications []user.Notification) ([]user.Notification, error) {
		i := user.FindNotification(notifications, notificationID)
		if i < 0 {
			return nil, user.ErrNotificationNotFound
		}
		return append(notifications[:i], notifications[i+1:]...), nil
	})
}

// modifyNotifications は行ロックを取得した上で受信箱を読み替えて保存する
func (r *UserRepository) modifyNotifications(ctx context.Context, userID string, fn func([]user.Notification) ([]user.Notification, error)) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var raw types.JSONText
		err := tx.GetContext(ctx, &raw, `SELECT notifications FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return user.ErrUserNotFound
			}
			return fmt.Errorf("通知の取得に失敗しました: %w", err)
		}
		notifications, err := decodeNotifications(raw)
		if err != nil {
			return err
		}
		updated, err := fn(notifications)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("JSON変換に失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET notifications = $2 WHERE id = $1`, userID, types.JSONText(payload)); err != nil {
			return fmt.Errorf("通知の更新に失敗しました: %w", err)
		}
		return nil
	})
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ user.Repository = (*UserRepository)(nil)
