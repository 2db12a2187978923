package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// TestScenario_FullRegistrationFlow は参加登録の完全なフローをテストします
// イベント作成 → 公開 → 残数確認 → 登録 → 通知確認 → 終了
func TestScenario_FullRegistrationFlow(t *testing.T) {
	env := newTestEnv(t, WithLocker(&fakeLocker{}))
	ctx := context.Background()

	// 1. 下書きを作成
	d := testDetails(ticket("tt-general", 100), ticket("tt-free", event.UnlimitedQuantity))
	d.Title = "東京 Go ミートアップ"
	created, err := env.eventService.CreateEvent(ctx, organizer, d)
	require.NoError(t, err)
	assert.Equal(t, event.StatusDraft, created.Status)

	// 2. 公開前は参加者から見えない
	_, err = env.availability.GetAvailability(ctx, attendeeA, created.ID)
	assert.ErrorIs(t, err, event.ErrEventNotFound)

	// 3. 公開
	_, err = env.eventService.PublishEvent(ctx, organizer, created.ID)
	require.NoError(t, err)

	// 4. 参加登録
	result, err := env.registrations.RegisterForEvent(ctx, registerInput(created, attendeeA, "tt-general"))
	require.NoError(t, err)
	assert.Equal(t, event.RegistrationConfirmed, result.Registration.Status)

	// 5. 残数が減っていることを確認
	availability, err := env.availability.GetAvailability(ctx, attendeeA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, availability[0].Remaining)
	assert.Equal(t, event.UnlimitedQuantity, availability[1].Remaining)

	// 6. 受信箱に確認通知が届いている
	inbox, err := env.notifications.ListNotifications(ctx, attendeeA.ID, true)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "You have successfully registered for 東京 Go ミートアップ", inbox[0].Message)

	// 7. 参加イベント一覧に含まれる
	mine, err := env.eventService.ListMyEvents(ctx, attendeeA)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	// 8. 終了日時を過ぎるとワーカーが終了状態にし、以降は登録できない
	env.clock.Advance(48 * time.Hour)
	n, err := env.eventService.CompleteEndedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = env.registrations.RegisterForEvent(ctx, registerInput(created, attendeeB, "tt-free"))
	assert.ErrorIs(t, err, event.ErrEventNotPublished)

	stored := env.reload(t, created.ID)
	assert.Equal(t, event.StatusCompleted, stored.Status)
	assertLedgerConsistent(t, stored)
}

// TestScenario_TwoUsersRaceForLastTicket は残り1枚を2人が同時に取り合うシナリオ
func TestScenario_TwoUsersRaceForLastTicket(t *testing.T) {
	for _, locked := range []bool{true, false} {
		t.Run(fmt.Sprintf("ロック=%v", locked), func(t *testing.T) {
			var opts []RegistrationOption
			if locked {
				opts = append(opts, WithLocker(&fakeLocker{}))
			}
			env := newTestEnv(t, opts...)
			ctx := context.Background()
			e := env.publishedEvent(t, ticket("tt-1", 1))

			start := make(chan struct{})
			results := make(chan error, 2)
			for _, attendee := range []user.Actor{attendeeA, attendeeB} {
				go func(attendee user.Actor) {
					<-start
					_, err := env.registrations.RegisterForEvent(ctx, registerInput(e, attendee, "tt-1"))
					results <- err
				}(attendee)
			}
			close(start)

			var confirmed, unavailable int
			for i := 0; i < 2; i++ {
				err := <-results
				switch {
				case err == nil:
					confirmed++
				case errors.Is(err, event.ErrTicketUnavailable):
					unavailable++
				default:
					t.Errorf("想定外のエラー: %v", err)
				}
			}
			assert.Equal(t, 1, confirmed, "1人だけが登録成功")
			assert.Equal(t, 1, unavailable, "もう1人はチケット取得不可")

			stored := env.reload(t, e.ID)
			assert.Equal(t, 1, stored.TicketTypes[0].Sold)
			assert.Len(t, stored.Registrations, 1)
		})
	}
}

// TestScenario_ManyUsersCompeting は50人が残り少ないチケットを取り合うシナリオ
func TestScenario_ManyUsersCompeting(t *testing.T) {
	env := newTestEnv(t, WithLocker(&fakeLocker{}))
	ctx := context.Background()
	e := env.publishedEvent(t, ticket("tt-vip", 3))

	const numUsers = 50
	var successCount, soldOutCount, otherErrorCount int32
	var wg sync.WaitGroup
	for i := 0; i < numUsers; i++ {
		wg.Add(1)
		go func(userNum int) {
			defer wg.Done()
			attendee := user.Actor{ID: fmt.Sprintf("user-%02d", userNum), Name: "参加者"}
			_, err := env.registrations.RegisterForEvent(ctx, registerInput(e, attendee, "tt-vip"))
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case errors.Is(err, event.ErrTicketSoldOut):
				atomic.AddInt32(&soldOutCount, 1)
			default:
				atomic.AddInt32(&otherErrorCount, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), successCount, "販売数ぶんだけ成功")
	assert.Equal(t, int32(numUsers-3), soldOutCount, "残りは全て完売")
	assert.Equal(t, int32(0), otherErrorCount)
	t.Logf("成功: %d, 完売: %d, その他エラー: %d", successCount, soldOutCount, otherErrorCount)

	assertLedgerConsistent(t, env.reload(t, e.ID))
}

// TestScenario_DraftEventRejectsRegistration は下書きのイベントへの登録シナリオ
func TestScenario_DraftEventRejectsRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.draftEvent(t, ticket("tt-1", 10))

	_, err := env.registrations.RegisterForEvent(ctx, registerInput(e, attendeeA, "tt-1"))

	assert.ErrorIs(t, err, event.ErrEventNotPublished)
	stored := env.reload(t, e.ID)
	assert.Empty(t, stored.Registrations, "登録は作成されない")
	assert.Equal(t, 0, stored.TicketTypes[0].Sold, "販売済み数は変わらない")

	inbox, err := env.notifications.ListNotifications(ctx, attendeeA.ID, false)
	require.NoError(t, err)
	assert.Empty(t, inbox, "通知も届かない")
}

// TestScenario_RegisterTwice は登録済みのユーザーが再度登録するシナリオ
func TestScenario_RegisterTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.publishedEvent(t, ticket("tt-1", 10), ticket("tt-2", 10))

	_, err := env.registrations.RegisterForEvent(ctx, registerInput(e, attendeeA, "tt-1"))
	require.NoError(t, err)

	for _, ticketTypeID := range []string{"tt-1", "tt-2"} {
		_, err = env.registrations.RegisterForEvent(ctx, registerInput(e, attendeeA, ticketTypeID))
		assert.ErrorIs(t, err, event.ErrAlreadyRegistered)
	}

	stored := env.reload(t, e.ID)
	assert.Equal(t, 1, stored.TicketTypes[0].Sold+stored.TicketTypes[1].Sold, "販売済み数は1回だけ増える")
	assert.Len(t, stored.RegistrationsByUser(attendeeA.ID), 1)
}

// TestScenario_CancelledEventKeepsHistory は中止後も登録履歴が残るシナリオ
func TestScenario_CancelledEventKeepsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.publishedEvent(t, ticket("tt-1", 10))

	result, err := env.registrations.RegisterForEvent(ctx, registerInput(e, attendeeA, "tt-1"))
	require.NoError(t, err)

	_, err = env.eventService.CancelEvent(ctx, organizer, e.ID)
	require.NoError(t, err)

	_, err = env.registrations.RegisterForEvent(ctx, registerInput(e, attendeeB, "tt-1"))
	assert.ErrorIs(t, err, event.ErrEventNotPublished)

	regs, err := env.eventService.ListRegistrations(ctx, organizer, e.ID, "")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, result.Registration.ConfirmationCode, regs[0].ConfirmationCode)
	assert.Equal(t, "参加 一郎", regs[0].UserName, "登録時点の氏名が残る")
}
