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

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
)

const eventColumns = `id, title, description, location, start_date, end_date, organizer_id, organizer_name,
	category, image_url, status, metadata, speakers, agenda, ticket_types, registrations,
	created_at, updated_at, version`

// eventRow はDBの行を表す構造体。埋め込みデータは JSONB 列に保存する
type eventRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Location      string         `db:"location"`
	StartDate     sql.NullTime   `db:"start_date"`
	EndDate       sql.NullTime   `db:"end_date"`
	OrganizerID   string         `db:"organizer_id"`
	OrganizerName string         `db:"organizer_name"`
	Category      string         `db:"category"`
	ImageURL      string         `db:"image_url"`
	Status        string         `db:"status"`
	Metadata      types.JSONText `db:"metadata"`
	Speakers      types.JSONText `db:"speakers"`
	Agenda        types.JSONText `db:"agenda"`
	TicketTypes   types.JSONText `db:"ticket_types"`
	Registrations types.JSONText `db:"registrations"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Version       int            `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() (*event.Event, error) {
	e := &event.Event{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Location:      r.Location,
		OrganizerID:   r.OrganizerID,
		OrganizerName: r.OrganizerName,
		Category:      r.Category,
		ImageURL:      r.ImageURL,
		Status:        event.Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
	if r.StartDate.Valid {
		e.StartDate = r.StartDate.Time
	}
	if r.EndDate.Valid {
		e.EndDate = r.EndDate.Time
	}

	columns := []struct {
		name string
		raw  types.JSONText
		dest any
	}{
		{"metadata", r.Metadata, &e.Metadata},
		{"speakers", r.Speakers, &e.Speakers},
		{"agenda", r.Agenda, &e.Agenda},
		{"ticket_types", r.TicketTypes, &e.TicketTypes},
		{"registrations", r.Registrations, &e.Registrations},
	}
	for _, c := range columns {
		if len(c.raw) == 0 {
			continue
		}
		if err := c.raw.Unmarshal(c.dest); err != nil {
			return nil, fmt.Errorf("%s の復元に失敗しました: %w", c.name, err)
		}
	}
	if e.Registrations == nil {
		e.Registrations = []event.Registration{}
	}
	return e, nil
}

// newEventRow はEventエンティティを行に変換する
func newEventRow(e *event.Event) (*eventRow, error) {
	row := &eventRow{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Location:      e.Location,
		StartDate:     sql.NullTime{Time: e.StartDate, Valid: !e.StartDate.IsZero()},
		EndDate:       sql.NullTime{Time: e.EndDate, Valid: !e.EndDate.IsZero()},
		OrganizerID:   e.OrganizerID,
		OrganizerName: e.OrganizerName,
		Category:      e.Category,
		ImageURL:      e.ImageURL,
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Version:       e.Version,
	}

	var err error
	if row.Metadata, err = marshalJSON(e.Metadata, "{}"); err != nil {
		return nil, err
	}
	if row.Speakers, err = marshalJSON(e.Speakers, "[]"); err != nil {
		return nil, err
	}
	if row.Agenda, err = marshalJSON(e.Agenda, "[]"); err != nil {
		return nil, err
	}
	if row.TicketTypes, err = marshalJSON(e.TicketTypes, "[]"); err != nil {
		return nil, err
	}
	if row.Registrations, err = marshalJSON(e.Registrations, "[]"); err != nil {
		return nil, err
	}
	return row, nil
}

// marshalJSON は nil の場合に empty を返す
func marshalJSON(v any, empty string) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSON変換に失敗しました: %w", err)
	}
	if string(b) == "null" {
		return types.JSONText(empty), nil
	}
	return types.JSONText(b), nil
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	row, err := newEventRow(e)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO events (id, title, description, location, start_date, end_date, organizer_id, organizer_name,
			category, image_url, status, metadata, speakers, agenda, ticket_types, registrations,
			created_at, updated_at, version)
		VALUES (:id, :title, :description, :location, :start_date, :end_date, :organizer_id, :organizer_name,
			:category, :image_url, :status, :metadata, :speakers, :agenda, :ticket_types, :registrations,
			:created_at, :updated_at, :version)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity()
}

// List は条件に一致するイベントを開始日時の昇順で取得する
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.OrganizerID != "" {
		add("organizer_id = $%d", filter.OrganizerID)
	}
	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if !filter.StartsAfter.IsZero() {
		add("start_date > $%d", filter.StartsAfter)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + eventColumns + ` FROM events`)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY start_date ASC NULLS LAST, id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	return r.selectEvents(ctx, "イベント一覧取得", b.String(), args...)
}

// ListByAttendee はユーザーの確定済み登録を含むイベントを取得する
func (r *EventRepository) ListByAttendee(ctx context.Context, userID string) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE registrations @> jsonb_build_array(jsonb_build_object('user_id', $1::text, 'status', 'CONFIRMED'))
		ORDER BY start_date ASC NULLS LAST, id ASC
	`
	return r.selectEvents(ctx, "参加イベント取得", query, userID)
}

// ListEndedPublished は終了日時を過ぎた公開中イベントを取得する
func (r *EventRepository) ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'PUBLISHED' AND end_date < $1
		ORDER BY end_date ASC
		LIMIT $2
	`
	return r.selectEvents(ctx, "終了イベント取得", query, now, limit)
}

// Update はイベントを更新する（楽観的ロック）
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	row, err := newEventRow(e)
	if err != nil {
		return err
	}
	query := `
		UPDATE events
		SET title = :title, description = :description, location = :location,
		    start_date = :start_date, end_date = :end_date, organizer_name = :organizer_name,
		    category = :category, image_url = :image_url, status = :status,
		    metadata = :metadata, speakers = :speakers, agenda = :agenda,
		    ticket_types = :ticket_types, registrations = :registrations,
		    updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		// 行が存在するならバージョン不一致
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, e.ID); err != nil {
			return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
		}
		if !exists {
			return event.ErrEventNotFound
		}
		return event.ErrConcurrencyConflict
	}

	e.Version++
	return nil
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isInvalidText(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

func (r *EventRepository) selectEvents(ctx context.Context, op, query string, args ...any) ([]*event.Event, error) {
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%sに失敗しました: %w", op, err)
	}

	events := make([]*event.Event, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
