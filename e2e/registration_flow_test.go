package e2e

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := NewTestServer(t)

	rec := server.Request("GET", "/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", resp["status"])
}

// TestE2E_CompleteRegistrationJourney は作成から参加登録・通知確認までの一連の流れをテスト
func TestE2E_CompleteRegistrationJourney(t *testing.T) {
	server := NewTestServer(t)
	organizer := server.Token(t, "e2e-organizer", "ORGANIZER")
	attendee := server.Token(t, "e2e-attendee", "ATTENDEE")

	var eventID, ticketTypeID, notificationID string

	// 1. イベント作成
	t.Run("イベント作成", func(t *testing.T) {
		rec := server.Request("POST", "/api/v1/events", eventBody("Go カンファレンス 2026", 14, 100), organizer)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[map[string]any](t, rec)
		eventID = resp["id"].(string)
		assert.Equal(t, "DRAFT", resp["status"])
		ticketTypeID = resp["ticket_types"].([]any)[0].(map[string]any)["id"].(string)
		assert.NotEmpty(t, ticketTypeID)
	})

	// 2. 下書きは参加者から見えない
	t.Run("下書きは非公開", func(t *testing.T) {
		rec := server.Request("GET", fmt.Sprintf("/api/v1/events/%s", eventID), nil, attendee)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = server.Request("GET", fmt.Sprintf("/api/v1/events/%s/availability", eventID), nil, attendee)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// 主催者は公開前でも販売状況を確認できる
		rec = server.Request("GET", fmt.Sprintf("/api/v1/events/%s/availability", eventID), nil, organizer)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = server.Request("POST", fmt.Sprintf("/api/v1/events/%s/registrations", eventID),
			map[string]any{"ticket_type_id": ticketTypeID, "amount_paid": 5000}, attendee)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	// 3. 公開
	t.Run("公開", func(t *testing.T) {
		rec := server.Request("POST", fmt.Sprintf("/api/v1/events/%s/publish", eventID), nil, organizer)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "PUBLISHED", decode[map[string]any](t, rec)["status"])
	})

	// 4. 参加登録
	t.Run("参加登録", func(t *testing.T) {
		rec := server.Request("POST", fmt.Sprintf("/api/v1/events/%s/registrations", eventID),
			map[string]any{"ticket_type_id": ticketTypeID, "amount_paid": 5000}, attendee)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[map[string]any](t, rec)
		registration := resp["registration"].(map[string]any)
		assert.Equal(t, "CONFIRMED", registration["status"])
		assert.Equal(t, "e2e-attendee", registration["user_id"])
		assert.Len(t, registration["confirmation_code"], 8)
	})

	// 5. 残数が減っている
	t.Run("残数確認", func(t *testing.T) {
		rec := server.Request("GET", fmt.Sprintf("/api/v1/events/%s/availability", eventID), nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[map[string]any](t, rec)
		ticket := resp["ticket_types"].([]any)[0].(map[string]any)
		assert.Equal(t, float64(99), ticket["remaining"])
		assert.Equal(t, true, ticket["on_sale"])
	})

	// 6. 二重登録はできない
	t.Run("二重登録", func(t *testing.T) {
		rec := server.Request("POST", fmt.Sprintf("/api/v1/events/%s/registrations", eventID),
			map[string]any{"ticket_type_id": ticketTypeID, "amount_paid": 5000}, attendee)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	// 7. 受信箱に確認通知が届く
	t.Run("通知確認", func(t *testing.T) {
		rec := server.Request("GET", "/api/v1/me/notifications?unread=true", nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)

		notifications := decode[[]map[string]any](t, rec)
		require.Len(t, notifications, 1)
		assert.Equal(t, "REGISTRATION_CONFIRMATION", notifications[0]["type"])
		assert.Equal(t, eventID, notifications[0]["related_entity_id"])
		notificationID = notifications[0]["id"].(string)
	})

	// 8. 既読にすると未読一覧から消える
	t.Run("既読化", func(t *testing.T) {
		rec := server.Request("POST", fmt.Sprintf("/api/v1/me/notifications/%s/read", notificationID), nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = server.Request("GET", "/api/v1/me/notifications?unread=true", nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = server.Request("GET", "/api/v1/me", nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decode[map[string]any](t, rec)["unread_count"])
	})

	// 9. 参加イベント一覧
	t.Run("参加イベント一覧", func(t *testing.T) {
		rec := server.Request("GET", "/api/v1/me/events", nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)

		events := decode[[]map[string]any](t, rec)
		require.Len(t, events, 1)
		assert.Equal(t, eventID, events[0]["id"])
		assert.Equal(t, float64(1), events[0]["registration_count"])
	})

	// 10. 登録一覧は主催者のみ
	t.Run("登録一覧", func(t *testing.T) {
		rec := server.Request("GET", fmt.Sprintf("/api/v1/events/%s/registrations", eventID), nil, organizer)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, rec), 1)

		rec = server.Request("GET", fmt.Sprintf("/api/v1/events/%s/registrations", eventID), nil, attendee)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

// TestE2E_LastTicketConflict は最後の1枚を取り合うケースをテスト
func TestE2E_LastTicketConflict(t *testing.T) {
	server := NewTestServer(t)
	organizer := server.Token(t, "conflict-organizer", "ORGANIZER")
	eventID, ticketTypeID := server.createPublishedEvent(t, organizer, 1)
	path := fmt.Sprintf("/api/v1/events/%s/registrations", eventID)
	body := map[string]any{"ticket_type_id": ticketTypeID}

	rec := server.Request("POST", path, body, server.Token(t, "first-user"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = server.Request("POST", path, body, server.Token(t, "second-user"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["error"], "完売")
}

// TestE2E_ConcurrentRegistrations は同時登録で販売数を超えないことをテスト
func TestE2E_ConcurrentRegistrations(t *testing.T) {
	server := NewTestServer(t)
	organizer := server.Token(t, "concurrent-organizer", "ORGANIZER")
	const (
		quantity = 5
		users    = 20
	)
	eventID, ticketTypeID := server.createPublishedEvent(t, organizer, quantity)
	path := fmt.Sprintf("/api/v1/events/%s/registrations", eventID)

	tokens := make([]string, users)
	for i := range tokens {
		tokens[i] = server.Token(t, fmt.Sprintf("concurrent-user-%02d", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			rec := server.Request("POST", path, map[string]any{"ticket_type_id": ticketTypeID}, token)
			mu.Lock()
			statuses[rec.Code]++
			mu.Unlock()
		}(token)
	}
	wg.Wait()

	assert.Equal(t, quantity, statuses[http.StatusCreated])
	assert.Equal(t, users-quantity, statuses[http.StatusConflict])

	rec := server.Request("GET", fmt.Sprintf("/api/v1/events/%s/availability", eventID), nil, organizer)
	require.Equal(t, http.StatusOK, rec.Code)
	ticket := decode[map[string]any](t, rec)["ticket_types"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(quantity), ticket["sold"])
	assert.Equal(t, float64(0), ticket["remaining"])
}

// TestE2E_Permissions は認証・認可をテスト
func TestE2E_Permissions(t *testing.T) {
	server := NewTestServer(t)
	organizer := server.Token(t, "perm-organizer", "ORGANIZER")
	other := server.Token(t, "perm-other", "ORGANIZER")
	attendee := server.Token(t, "perm-attendee")

	t.Run("トークンなしは401", func(t *testing.T) {
		rec := server.Request("GET", "/api/v1/events", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("参加者はイベントを作成できない", func(t *testing.T) {
		rec := server.Request("POST", "/api/v1/events", eventBody("x", 7, 10), attendee)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("他の主催者は公開・削除できない", func(t *testing.T) {
		rec := server.Request("POST", "/api/v1/events", eventBody("他人のイベント", 7, 10), organizer)
		require.Equal(t, http.StatusCreated, rec.Code)
		eventID := decode[map[string]any](t, rec)["id"].(string)

		rec = server.Request("POST", fmt.Sprintf("/api/v1/events/%s/publish", eventID), nil, other)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = server.Request("DELETE", fmt.Sprintf("/api/v1/events/%s", eventID), nil, other)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = server.Request("DELETE", fmt.Sprintf("/api/v1/events/%s", eventID), nil, organizer)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

// TestE2E_CancelledEvent は中止したイベントの扱いをテスト
func TestE2E_CancelledEvent(t *testing.T) {
	server := NewTestServer(t)
	organizer := server.Token(t, "cancel-organizer", "ORGANIZER")
	attendee := server.Token(t, "cancel-attendee")
	eventID, ticketTypeID := server.createPublishedEvent(t, organizer, 10)
	path := fmt.Sprintf("/api/v1/events/%s/registrations", eventID)

	rec := server.Request("POST", path, map[string]any{"ticket_type_id": ticketTypeID}, attendee)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = server.Request("POST", fmt.Sprintf("/api/v1/events/%s/cancel", eventID), nil, organizer)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("新規登録は受け付けない", func(t *testing.T) {
		rec := server.Request("POST", path, map[string]any{"ticket_type_id": ticketTypeID}, server.Token(t, "late-user"))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("既存の登録は残る", func(t *testing.T) {
		rec := server.Request("GET", path, nil, organizer)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, rec), 1)
	})

	t.Run("構成の変更はできない", func(t *testing.T) {
		body := eventBody("中止イベント", 30, 10)
		rec := server.Request("PUT", fmt.Sprintf("/api/v1/events/%s", eventID), body, organizer)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("再公開はできない", func(t *testing.T) {
		rec := server.Request("POST", fmt.Sprintf("/api/v1/events/%s/publish", eventID), nil, organizer)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

// TestE2E_UserManagement はプロフィール更新と管理者によるユーザー管理をテスト
func TestE2E_UserManagement(t *testing.T) {
	server := NewTestServer(t)
	admin := server.Token(t, "e2e-admin", "ADMIN")
	attendee := server.Token(t, "e2e-attendee", "ATTENDEE")

	t.Run("本人がプロフィールを更新する", func(t *testing.T) {
		rec := server.Request("PUT", "/api/v1/me", map[string]any{
			"first_name": "太郎", "last_name": "Sanka", "phone_number": "+819012345678",
		}, attendee)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[map[string]any](t, rec)
		assert.Equal(t, "+819012345678", resp["phone_number"])

		rec = server.Request("PUT", "/api/v1/me", map[string]any{
			"first_name": "太郎", "last_name": "Sanka", "phone_number": "03-1234",
		}, attendee)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("参加者はユーザー管理を使えない", func(t *testing.T) {
		rec := server.Request("GET", "/api/v1/users", nil, attendee)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = server.Request("DELETE", "/api/v1/users/e2e-admin", nil, attendee)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("管理者が検索して通知を送る", func(t *testing.T) {
		rec := server.Request("GET", "/api/v1/users?name=sank&role=ATTENDEE", nil, admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		users := decode[[]map[string]any](t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, "e2e-attendee", users[0]["id"])

		rec = server.Request("POST", "/api/v1/users/e2e-attendee/notifications", map[string]any{
			"title": "明日開催です", "message": "会場は東京です", "type": "EVENT_REMINDER",
		}, admin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = server.Request("GET", "/api/v1/me", nil, attendee)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decode[map[string]any](t, rec)["unread_count"])
	})

	t.Run("管理者がロールを付与すると主催できる", func(t *testing.T) {
		rec := server.Request("PUT", "/api/v1/users/e2e-attendee", map[string]any{"roles": []string{"ATTENDEE", "ORGANIZER"}}, admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = server.Request("POST", "/api/v1/events", eventBody("勉強会", 7, 10), attendee)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("管理者が削除する", func(t *testing.T) {
		rec := server.Request("DELETE", "/api/v1/users/e2e-attendee", nil, admin)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = server.Request("GET", "/api/v1/users/e2e-attendee", nil, admin)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
