package event

import "time"

// RegistrationStatus は参加登録の状態を表す
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
	RegistrationPending   RegistrationStatus = "PENDING"
)

// Registration はイベントに埋め込まれる参加登録。
// ユーザー名・メール・チケット種別名は登録時点のスナップショットで、後の変更では書き換えない
type Registration struct {
	ID               string             `json:"id" bson:"id"`
	UserID           string             `json:"user_id" bson:"user_id"`
	UserName         string             `json:"user_name" bson:"user_name"`
	UserEmail        string             `json:"user_email" bson:"user_email"`
	TicketTypeID     string             `json:"ticket_type_id" bson:"ticket_type_id"`
	TicketTypeName   string             `json:"ticket_type_name" bson:"ticket_type_name"`
	AmountPaid       float64            `json:"amount_paid" bson:"amount_paid"`
	Status           RegistrationStatus `json:"status" bson:"status"`
	RegistrationDate time.Time          `json:"registration_date" bson:"registration_date"`
	ConfirmationCode string             `json:"confirmation_code" bson:"confirmation_code"`
	SessionIDs       []string           `json:"session_ids,omitempty" bson:"session_ids,omitempty"`
	AttendeeInfo     map[string]string  `json:"attendee_info,omitempty" bson:"attendee_info,omitempty"`
}

// IsConfirmed は確定済みかを返す
func (r *Registration) IsConfirmed() bool {
	return r.Status == RegistrationConfirmed
}

// HasConfirmedRegistration はユーザーの確定済み登録が存在するかを返す
func (e *Event) HasConfirmedRegistration(userID string) bool {
	for i := range e.Registrations {
		if e.Registrations[i].UserID == userID && e.Registrations[i].IsConfirmed() {
			return true
		}
	}
	return false
}

// AppendRegistration は登録を台帳に追加する。重複チェックは呼び出し側の責務
func (e *Event) AppendRegistration(r Registration) {
	e.Registrations = append(e.Registrations, r)
}

// RegistrationsByUser はユーザーの登録一覧を返す
func (e *Event) RegistrationsByUser(userID string) []Registration {
	return e.filterRegistrations(func(r *Registration) bool { return r.UserID == userID })
}

// RegistrationsByTicketType はチケット種別ごとの登録一覧を返す
func (e *Event) RegistrationsByTicketType(ticketTypeID string) []Registration {
	return e.filterRegistrations(func(r *Registration) bool { return r.TicketTypeID == ticketTypeID })
}

// ConfirmedCount はチケット種別の確定済み登録数を返す
func (e *Event) ConfirmedCount(ticketTypeID string) int {
	n := 0
	for i := range e.Registrations {
		if e.Registrations[i].TicketTypeID == ticketTypeID && e.Registrations[i].IsConfirmed() {
			n++
		}
	}
	return n
}

func (e *Event) hasConfirmationCode(code string) bool {
	for i := range e.Registrations {
		if e.Registrations[i].ConfirmationCode == code {
			return true
		}
	}
	return false
}

func (e *Event) filterRegistrations(match func(*Registration) bool) []Registration {
	out := make([]Registration, 0)
	for i := range e.Registrations {
		if match(&e.Registrations[i]) {
			out = append(out, e.Registrations[i])
		}
	}
	return out
}
