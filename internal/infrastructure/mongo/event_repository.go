package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
)

// eventDocument はイベントのドキュメント表現
type eventDocument struct {
	ID            string               `bson:"_id"`
	Title         string               `bson:"title"`
	Description   string               `bson:"description"`
	Location      string               `bson:"location"`
	StartDate     *time.Time           `bson:"start_date,omitempty"`
	EndDate       *time.Time           `bson:"end_date,omitempty"`
	OrganizerID   string               `bson:"organizer_id"`
	OrganizerName string               `bson:"organizer_name"`
	Category      string               `bson:"category"`
	ImageURL      string               `bson:"image_url"`
	Status        string               `bson:"status"`
	Metadata      map[string]string    `bson:"metadata,omitempty"`
	Speakers      []event.Speaker      `bson:"speakers"`
	Agenda        []event.AgendaItem   `bson:"agenda"`
	TicketTypes   []event.TicketType   `bson:"ticket_types"`
	Registrations []event.Registration `bson:"registrations"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
	Version       int                  `bson:"version"`
}

func newEventDocument(e *event.Event) *eventDocument {
	d := &eventDocument{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Location:      e.Location,
		OrganizerID:   e.OrganizerID,
		OrganizerName: e.OrganizerName,
		Category:      e.Category,
		ImageURL:      e.ImageURL,
		Status:        string(e.Status),
		Metadata:      e.Metadata,
		Speakers:      nonNil(e.Speakers),
		Agenda:        nonNil(e.Agenda),
		TicketTypes:   nonNil(e.TicketTypes),
		Registrations: nonNil(e.Registrations),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Version:       e.Version,
	}
	if !e.StartDate.IsZero() {
		t := e.StartDate
		d.StartDate = &t
	}
	if !e.EndDate.IsZero() {
		t := e.EndDate
		d.EndDate = &t
	}
	return d
}

func (d *eventDocument) toEntity() *event.Event {
	e := &event.Event{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Location:      d.Location,
		OrganizerID:   d.OrganizerID,
		OrganizerName: d.OrganizerName,
		Category:      d.Category,
		ImageURL:      d.ImageURL,
		Status:        event.Status(d.Status),
		Metadata:      d.Metadata,
		Speakers:      d.Speakers,
		Agenda:        d.Agenda,
		TicketTypes:   d.TicketTypes,
		Registrations: nonNil(d.Registrations),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Version:       d.Version,
	}
	if d.StartDate != nil {
		e.StartDate = *d.StartDate
	}
	if d.EndDate != nil {
		e.EndDate = *d.EndDate
	}
	return e
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// EventRepository はイベントリポジトリのMongoDB実装
type EventRepository struct {
	coll *mongo.Collection
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{coll: db.Collection(eventsCollection)}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	if _, err := r.coll.InsertOne(ctx, newEventDocument(e)); err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	var doc eventDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return doc.toEntity(), nil
}

// List は条件に一致するイベントを開始日時の昇順で取得する
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	return r.find(ctx, "イベント一覧取得", listQuery(filter), opts)
}

// listQuery は ListFilter を MongoDB のクエリに変換する
func listQuery(filter event.ListFilter) bson.M {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.OrganizerID != "" {
		q["organizer_id"] = filter.OrganizerID
	}
	if filter.Query != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Query), "$options": "i"}
		q["$or"] = bson.A{bson.M{"title": pattern}, bson.M{"description": pattern}}
	}
	if !filter.StartsAfter.IsZero() {
		q["start_date"] = bson.M{"$gt": filter.StartsAfter}
	}
	return q
}

// ListByAttendee はユーザーの確定済み登録を含むイベントを取得する
func (r *EventRepository) ListByAttendee(ctx context.Context, userID string) ([]*event.Event, error) {
	q := bson.M{"registrations": bson.M{"$elemMatch": bson.M{
		"user_id": userID,
		"status":  string(event.RegistrationConfirmed),
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, "参加イベント取得", q, opts)
}

// ListEndedPublished は終了日時を過ぎた公開中イベントを取得する
func (r *EventRepository) ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	q := bson.M{"status": string(event.StatusPublished), "end_date": bson.M{"$lt": now}}
	opts := options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, "終了イベント取得", q, opts)
}

// Update はバージョンが一致する場合のみドキュメントを置き換える
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	doc := newEventDocument(e)
	doc.Version = e.Version + 1

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": e.ID, "version": e.Version}, doc)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": e.ID})
		if err != nil {
			return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
		}
		if n == 0 {
			return event.ErrEventNotFound
		}
		return event.ErrConcurrencyConflict
	}

	e.Version++
	return nil
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}
	if result.DeletedCount == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

func (r *EventRepository) find(ctx context.Context, op string, q bson.M, opts *options.FindOptions) ([]*event.Event, error) {
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("%sに失敗しました: %w", op, err)
	}
	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%sに失敗しました: %w", op, err)
	}
	events := make([]*event.Event, len(docs))
	for i := range docs {
		events[i] = docs[i].toEntity()
	}
	return events, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
