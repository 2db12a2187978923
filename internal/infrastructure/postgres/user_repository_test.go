package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

var userColumnNames = []string{"id", "email", "first_name", "last_name", "phone_number", "roles", "notifications", "created_at", "updated_at"}

const twoNotifications = `[{"id":"n-1","title":"a","message":"m","read":false,"created_at":"2026-05-01T10:00:00Z","type":"REGISTRATION_CONFIRMATION"},` +
	`{"id":"n-2","title":"b","message":"m","read":false,"created_at":"2026-05-01T10:00:00Z","type":"EVENT_REMINDER"}]`

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	u := &user.User{ID: "user-1", Email: "taro@example.com", FirstName: "Taro", Roles: []user.Role{user.RoleAttendee}, CreatedAt: testTime, UpdatedAt: testTime}

	t.Run("作成できる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("user-1", "taro@example.com", "Taro", "", "", `{"ATTENDEE"}`, []byte("[]"), testTime, testTime).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, u))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("重複は ErrUserAlreadyExists", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

		assert.ErrorIs(t, repo.Create(ctx, u), user.ErrUserAlreadyExists)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("ロールと通知を復元する", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows(userColumnNames).
				AddRow("user-1", "taro@example.com", "Taro", "Yamada", "", "{ATTENDEE,ORGANIZER}", twoNotifications, testTime, testTime))

		u, err := repo.GetByID(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, []user.Role{user.RoleAttendee, user.RoleOrganizer}, u.Roles)
		require.Len(t, u.Notifications, 2)
		assert.Equal(t, "n-1", u.Notifications[0].ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("存在しない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, user.ErrUserNotFound)
	})
}

func TestUserRepository_AppendNotification(t *testing.T) {
	ctx := context.Background()
	n := user.Notification{ID: "n-1", Title: "t", Message: "m", CreatedAt: testTime, Type: user.NotificationTypeRegistrationConfirmation}

	t.Run("JSONB に追記する", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE users SET notifications = notifications \|\| \$2::jsonb`).
			WithArgs("user-1", sqlmock.AnyArg(), testTime).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.AppendNotification(ctx, "user-1", n))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ユーザーが存在しない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.AppendNotification(ctx, "missing", n), user.ErrUserNotFound)
	})
}

func TestUserRepository_MarkNotificationRead(t *testing.T) {
	ctx := context.Background()

	t.Run("行ロックを取って既読にする", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT notifications FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"notifications"}).AddRow(twoNotifications))
		mock.ExpectExec(`UPDATE users SET notifications = \$2 WHERE id = \$1`).
			WithArgs("user-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := repo.MarkNotificationRead(ctx, "user-1", "n-2")

		require.NoError(t, err)
		assert.Equal(t, "n-2", n.ID)
		assert.True(t, n.Read)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("通知が無ければロールバック", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT notifications FROM users`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"notifications"}).AddRow(twoNotifications))
		mock.ExpectRollback()

		_, err := repo.MarkNotificationRead(ctx, "user-1", "n-9")

		assert.ErrorIs(t, err, user.ErrNotificationNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_MarkAllNotificationsRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`jsonb_array_elements\(notifications\)`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkAllNotificationsRead(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DeleteNotification(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT notifications FROM users`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.DeleteNotification(context.Background(), "user-1", "n-1")

	assert.ErrorIs(t, err, user.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("名前とロールとページングを組み立てる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`FROM users WHERE \(first_name ILIKE \$1 OR last_name ILIKE \$1\) AND \$2 = ANY\(roles\) ORDER BY created_at ASC, id ASC LIMIT \$3 OFFSET \$4`).
			WithArgs(`%100\%%`, "ORGANIZER", 10, 20).
			WillReturnRows(sqlmock.NewRows(userColumnNames).
				AddRow("user-1", "taro@example.com", "Taro", "Yamada", "", "{ORGANIZER}", "[]", testTime, testTime))

		got, err := repo.List(ctx, user.ListFilter{Name: "100%", Role: user.RoleOrganizer, Limit: 10, Offset: 20})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []user.Role{user.RoleOrganizer}, got[0].Roles)
		assert.Empty(t, got[0].Notifications)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("条件なし", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`SELECT .+ FROM users ORDER BY created_at ASC, id ASC$`).
			WillReturnRows(sqlmock.NewRows(userColumnNames))

		got, err := repo.List(ctx, user.ListFilter{})

		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	u := &user.User{ID: "user-1", FirstName: "Taro", LastName: "Sato", PhoneNumber: "0312345678", Roles: []user.Role{user.RoleAttendee, user.RoleOrganizer}, UpdatedAt: testTime}

	t.Run("受信箱以外を更新する", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE users\s+SET first_name = \$2, last_name = \$3, phone_number = \$4, roles = \$5, updated_at = \$6\s+WHERE id = \$1`).
			WithArgs("user-1", "Taro", "Sato", "0312345678", `{"ATTENDEE","ORGANIZER"}`, testTime).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, u))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("更新対象がない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, u), user.ErrUserNotFound)
	})

	t.Run("削除", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, repo.Delete(ctx, "user-1"))
		assert.ErrorIs(t, repo.Delete(ctx, "user-1"), user.ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
