package event

import (
	"context"
	"strings"
	"time"
)

// ListFilter はイベント一覧の絞り込み条件。ゼロ値の項目は条件に含めない
type ListFilter struct {
	Status      Status
	Category    string
	OrganizerID string
	Query       string    // タイトル・説明の部分一致（大文字小文字を区別しない）
	StartsAfter time.Time // 開始日時がこれより後のもの
	Limit       int
	Offset      int
}

// Matches は e が条件に一致するかを返す。インメモリ実装とテストで使用する
func (f ListFilter) Matches(e *Event) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.OrganizerID != "" && e.OrganizerID != f.OrganizerID {
		return false
	}
	if f.Query != "" && !containsFold(e.Title, f.Query) && !containsFold(e.Description, f.Query) {
		return false
	}
	if !f.StartsAfter.IsZero() && !e.StartDate.After(f.StartsAfter) {
		return false
	}
	return true
}

// Repository はイベントリポジトリのインターフェース。
// イベントは埋め込みデータを含めて1件単位で読み書きされる
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// List は条件に一致するイベントを開始日時の昇順で取得する
	List(ctx context.Context, filter ListFilter) ([]*Event, error)

	// ListByAttendee はユーザーの確定済み登録を含むイベントを取得する
	ListByAttendee(ctx context.Context, userID string) ([]*Event, error)

	// ListEndedPublished は終了日時を過ぎた公開中イベントを取得する
	ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]*Event, error)

	// Update はイベントを更新する（楽観的ロック）。
	// 保存済みの Version が event.Version と異なる場合は ErrConcurrencyConflict を返し、
	// 成功時は event.Version をインクリメントする
	Update(ctx context.Context, event *Event) error

	// Delete はイベントを削除する
	Delete(ctx context.Context, id string) error
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
