package event

import "time"

// TicketAvailability はチケット種別ごとの販売状況
type TicketAvailability struct {
	TicketTypeID string  `json:"ticket_type_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Sold         int     `json:"sold"`
	Remaining    int     `json:"remaining"` // 無制限の場合は -1
	Unlimited    bool    `json:"unlimited"`
	OnSale       bool    `json:"on_sale"`
}

// Availability は now 時点の全チケット種別の販売状況を返す
func (e *Event) Availability(now time.Time) []TicketAvailability {
	out := make([]TicketAvailability, 0, len(e.TicketTypes))
	for i := range e.TicketTypes {
		t := &e.TicketTypes[i]
		out = append(out, TicketAvailability{
			TicketTypeID: t.ID,
			Name:         t.Name,
			Price:        t.Price,
			Quantity:     t.Quantity,
			Sold:         t.Sold,
			Remaining:    t.Remaining(),
			Unlimited:    t.IsUnlimited(),
			OnSale:       e.Status == StatusPublished && t.CheckAvailable(now) == nil,
		})
	}
	return out
}
