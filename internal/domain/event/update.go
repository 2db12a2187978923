package event

import (
	"time"

	"github.com/google/uuid"
)

// ApplyDetails は主催者による更新内容を集約に反映する。
// 中止・終了済みのイベントでは日時・会場・アジェンダ・チケット種別の変更を受け付けない。
// 既存IDのチケット種別は販売済み数を引き継ぎ、販売済みのチケット種別は削除できない。
// 検証に失敗した場合、集約は変更しない
func (e *Event) ApplyDetails(d Details, now time.Time) error {
	if e.Status.IsTerminal() && e.changesStructure(d) {
		return ErrEventTerminal
	}

	next := e.Clone()
	next.Title = d.Title
	next.Description = d.Description
	next.Location = d.Location
	next.StartDate = d.StartDate
	next.EndDate = d.EndDate
	next.Category = d.Category
	next.ImageURL = d.ImageURL
	next.Metadata = cloneStringMap(d.Metadata)
	if d.Speakers != nil {
		next.Speakers = withSpeakerIDs(d.Speakers)
	}
	if d.Agenda != nil {
		next.Agenda = withAgendaIDs(d.Agenda)
	}
	if d.TicketTypes != nil {
		merged, err := mergeTicketTypes(e.TicketTypes, d.TicketTypes)
		if err != nil {
			return err
		}
		next.TicketTypes = merged
	}
	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = now
	*e = *next
	return nil
}

func (e *Event) changesStructure(d Details) bool {
	return d.Location != e.Location ||
		!d.StartDate.Equal(e.StartDate) ||
		!d.EndDate.Equal(e.EndDate) ||
		d.Agenda != nil ||
		d.TicketTypes != nil
}

// mergeTicketTypes は更新後のチケット種別一覧を組み立てる
func mergeTicketTypes(current, incoming []TicketType) ([]TicketType, error) {
	sold := make(map[string]int, len(current))
	for _, t := range current {
		sold[t.ID] = t.Sold
	}

	kept := make(map[string]bool, len(incoming))
	out := make([]TicketType, 0, len(incoming))
	for _, t := range incoming {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		// 同じIDが2回現れると販売済み数を二重に引き継いでしまう
		if kept[t.ID] {
			return nil, ErrDuplicateTicketTypeID
		}
		t.Sold = sold[t.ID]
		t.SaleStartDate = cloneTime(t.SaleStartDate)
		t.SaleEndDate = cloneTime(t.SaleEndDate)
		kept[t.ID] = true
		out = append(out, t)
	}

	for _, t := range current {
		if t.Sold > 0 && !kept[t.ID] {
			return nil, ErrTicketTypeInUse
		}
	}
	return out, nil
}
