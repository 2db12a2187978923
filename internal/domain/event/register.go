package event

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// confirmationCodeLength は確認コードの文字数
const confirmationCodeLength = 8

// maxConfirmationCodeAttempts はイベント内で確認コードが衝突した場合の再生成回数
const maxConfirmationCodeAttempts = 5

// CodeGenerator は確認コードを生成する関数
type CodeGenerator func() string

// NewConfirmationCode はランダムなトークンから8文字の大文字確認コードを生成する
func NewConfirmationCode() string {
	return strings.ToUpper(uuid.NewString()[:confirmationCodeLength])
}

// RegisterParams は参加登録の入力
type RegisterParams struct {
	Attendee     user.Actor
	TicketTypeID string
	AmountPaid   float64
	SessionIDs   []string
	AttendeeInfo map[string]string
}

// Register はイベントへの参加登録を集約上で行う。
// 状態確認 → 重複確認 → チケット確保 → 登録作成 → 台帳追加 の順に処理し、
// エラー時は集約を変更しない。永続化は呼び出し側が1回の書き込みで行う
func (e *Event) Register(p RegisterParams, now time.Time, gen CodeGenerator) (Registration, error) {
	if p.Attendee.ID == "" {
		return Registration{}, ErrAttendeeRequired
	}
	if p.AmountPaid < 0 {
		return Registration{}, ErrInvalidAmountPaid
	}
	if e.Status != StatusPublished {
		return Registration{}, ErrEventNotPublished
	}
	if e.HasConfirmedRegistration(p.Attendee.ID) {
		return Registration{}, ErrAlreadyRegistered
	}

	// 確認コード生成に失敗しても sold を戻さずに済むよう、変更前に可否だけ確認する
	t, err := e.FindTicketType(p.TicketTypeID)
	if err != nil {
		return Registration{}, err
	}
	if err := t.CheckAvailable(now); err != nil {
		return Registration{}, err
	}
	code, err := e.uniqueConfirmationCode(gen)
	if err != nil {
		return Registration{}, err
	}

	reserved, err := e.ReserveTicket(p.TicketTypeID, now)
	if err != nil {
		return Registration{}, err
	}

	reg := Registration{
		ID:               uuid.NewString(),
		UserID:           p.Attendee.ID,
		UserName:         p.Attendee.Name,
		UserEmail:        p.Attendee.Email,
		TicketTypeID:     reserved.ID,
		TicketTypeName:   reserved.Name,
		AmountPaid:       p.AmountPaid,
		Status:           RegistrationConfirmed,
		RegistrationDate: now,
		ConfirmationCode: code,
		SessionIDs:       cloneStrings(p.SessionIDs),
		AttendeeInfo:     cloneStringMap(p.AttendeeInfo),
	}
	e.AppendRegistration(reg)
	e.UpdatedAt = now
	return reg, nil
}

func (e *Event) uniqueConfirmationCode(gen CodeGenerator) (string, error) {
	if gen == nil {
		gen = NewConfirmationCode
	}
	for i := 0; i < maxConfirmationCodeAttempts; i++ {
		code := gen()
		if code != "" && !e.hasConfirmationCode(code) {
			return code, nil
		}
	}
	return "", ErrConfirmationCodeExhausted
}
