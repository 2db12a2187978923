package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-registration/internal/domain/user"
)

// Event はイベント集約のルート。チケット種別・参加登録・登壇者・アジェンダを値として保持し、
// 集約全体を1つの単位として読み書きする
type Event struct {
	ID            string
	Title         string
	Description   string
	Location      string
	StartDate     time.Time
	EndDate       time.Time
	OrganizerID   string
	OrganizerName string
	Category      string
	ImageURL      string
	Status        Status
	Metadata      map[string]string
	Speakers      []Speaker
	Agenda        []AgendaItem
	TicketTypes   []TicketType
	Registrations []Registration
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int // 楽観的ロック用
}

// Speaker は登壇者
type Speaker struct {
	ID          string   `json:"id" bson:"id"`
	Name        string   `json:"name" bson:"name"`
	Bio         string   `json:"bio,omitempty" bson:"bio,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	Company     string   `json:"company,omitempty" bson:"company,omitempty"`
	JobTitle    string   `json:"job_title,omitempty" bson:"job_title,omitempty"`
	SocialLinks []string `json:"social_links,omitempty" bson:"social_links,omitempty"`
}

// AgendaItem はアジェンダの項目（BREAK, SESSION, KEYNOTE など）
type AgendaItem struct {
	ID          string    `json:"id" bson:"id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	StartTime   time.Time `json:"start_time" bson:"start_time"`
	EndTime     time.Time `json:"end_time" bson:"end_time"`
	Type        string    `json:"type,omitempty" bson:"type,omitempty"`
	Sessions    []Session `json:"sessions,omitempty" bson:"sessions,omitempty"`
}

// Session はアジェンダ項目内のセッション
type Session struct {
	ID             string            `json:"id" bson:"id"`
	Title          string            `json:"title" bson:"title"`
	Description    string            `json:"description,omitempty" bson:"description,omitempty"`
	Location       string            `json:"location,omitempty" bson:"location,omitempty"`
	StartTime      time.Time         `json:"start_time" bson:"start_time"`
	EndTime        time.Time         `json:"end_time" bson:"end_time"`
	SpeakerIDs     []string          `json:"speaker_ids,omitempty" bson:"speaker_ids,omitempty"`
	Capacity       int               `json:"capacity" bson:"capacity"`
	SessionType    string            `json:"session_type,omitempty" bson:"session_type,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty" bson:"additional_info,omitempty"`
}

// Details はイベント作成・更新時に主催者が指定する内容。
// Speakers / Agenda / TicketTypes が nil の場合、更新時は既存の値を維持する
type Details struct {
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     time.Time
	Category    string
	ImageURL    string
	Metadata    map[string]string
	Speakers    []Speaker
	Agenda      []AgendaItem
	TicketTypes []TicketType
}

// NewEvent は下書き状態の新しいイベントを作成する
func NewEvent(d Details, organizer user.Actor, now time.Time) *Event {
	e := &Event{
		ID:            uuid.NewString(),
		Title:         d.Title,
		Description:   d.Description,
		Location:      d.Location,
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		OrganizerID:   organizer.ID,
		OrganizerName: organizer.Name,
		Category:      d.Category,
		ImageURL:      d.ImageURL,
		Status:        StatusDraft,
		Metadata:      cloneStringMap(d.Metadata),
		Speakers:      withSpeakerIDs(d.Speakers),
		Agenda:        withAgendaIDs(d.Agenda),
		TicketTypes:   make([]TicketType, 0, len(d.TicketTypes)),
		Registrations: []Registration{},
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       0,
	}
	for _, t := range d.TicketTypes {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.Sold = 0
		e.TicketTypes = append(e.TicketTypes, t)
	}
	return e
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrEventTitleRequired
	}
	if !e.StartDate.IsZero() && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return ErrInvalidEventTime
	}
	seen := make(map[string]bool, len(e.TicketTypes))
	for i := range e.TicketTypes {
		if err := e.TicketTypes[i].Validate(); err != nil {
			return err
		}
		if seen[e.TicketTypes[i].ID] {
			return ErrDuplicateTicketTypeID
		}
		seen[e.TicketTypes[i].ID] = true
	}
	return nil
}

// CanManage は主催者本人または管理者かを返す
func (e *Event) CanManage(actor user.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID != "" && actor.ID == e.OrganizerID
}

// TransitionTo は状態遷移を行う
func (e *Event) TransitionTo(next Status, now time.Time) error {
	if !e.Status.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	e.Status = next
	e.UpdatedAt = now
	return nil
}

// Publish は下書きを公開する
func (e *Event) Publish(actor user.Actor, now time.Time) error {
	return e.transitionAs(actor, StatusPublished, now)
}

// Cancel は公開中のイベントを中止する
func (e *Event) Cancel(actor user.Actor, now time.Time) error {
	return e.transitionAs(actor, StatusCancelled, now)
}

// Complete は公開中のイベントを終了状態にする
func (e *Event) Complete(actor user.Actor, now time.Time) error {
	return e.transitionAs(actor, StatusCompleted, now)
}

func (e *Event) transitionAs(actor user.Actor, next Status, now time.Time) error {
	if !e.CanManage(actor) {
		return ErrPermissionDenied
	}
	return e.TransitionTo(next, now)
}

// HasEnded は now 時点で終了日時を過ぎているかを返す
func (e *Event) HasEnded(now time.Time) bool {
	return !e.EndDate.IsZero() && e.EndDate.Before(now)
}

// Clone は埋め込みデータを含めた集約のディープコピーを返す
func (e *Event) Clone() *Event {
	c := *e
	c.Metadata = cloneStringMap(e.Metadata)
	c.Speakers = make([]Speaker, len(e.Speakers))
	for i, s := range e.Speakers {
		s.SocialLinks = cloneStrings(s.SocialLinks)
		c.Speakers[i] = s
	}
	c.Agenda = make([]AgendaItem, len(e.Agenda))
	for i, a := range e.Agenda {
		a.Sessions = cloneSessions(a.Sessions)
		c.Agenda[i] = a
	}
	c.TicketTypes = make([]TicketType, len(e.TicketTypes))
	for i, t := range e.TicketTypes {
		t.SaleStartDate = cloneTime(t.SaleStartDate)
		t.SaleEndDate = cloneTime(t.SaleEndDate)
		c.TicketTypes[i] = t
	}
	c.Registrations = make([]Registration, len(e.Registrations))
	for i, r := range e.Registrations {
		r.SessionIDs = cloneStrings(r.SessionIDs)
		r.AttendeeInfo = cloneStringMap(r.AttendeeInfo)
		c.Registrations[i] = r
	}
	return &c
}

func withSpeakerIDs(in []Speaker) []Speaker {
	out := make([]Speaker, len(in))
	for i, s := range in {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.SocialLinks = cloneStrings(s.SocialLinks)
		out[i] = s
	}
	return out
}

func withAgendaIDs(in []AgendaItem) []AgendaItem {
	out := make([]AgendaItem, len(in))
	for i, a := range in {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		sessions := cloneSessions(a.Sessions)
		for j := range sessions {
			if sessions[j].ID == "" {
				sessions[j].ID = uuid.NewString()
			}
		}
		a.Sessions = sessions
		out[i] = a
	}
	return out
}

func cloneSessions(in []Session) []Session {
	if in == nil {
		return nil
	}
	out := make([]Session, len(in))
	for i, s := range in {
		s.SpeakerIDs = cloneStrings(s.SpeakerIDs)
		s.AdditionalInfo = cloneStringMap(s.AdditionalInfo)
		out[i] = s
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
