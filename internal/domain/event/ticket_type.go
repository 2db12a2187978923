package event

import "time"

// UnlimitedQuantity は販売数に上限がないことを表す
const UnlimitedQuantity = -1

// TicketType はイベントに埋め込まれるチケット種別
type TicketType struct {
	ID            string     `json:"id" bson:"id"`
	Name          string     `json:"name" bson:"name"`
	Description   string     `json:"description,omitempty" bson:"description,omitempty"`
	Price         float64    `json:"price" bson:"price"`
	Quantity      int        `json:"quantity" bson:"quantity"`
	Sold          int        `json:"sold" bson:"sold"`
	SaleStartDate *time.Time `json:"sale_start_date,omitempty" bson:"sale_start_date,omitempty"`
	SaleEndDate   *time.Time `json:"sale_end_date,omitempty" bson:"sale_end_date,omitempty"`
	IsAvailable   bool       `json:"is_available" bson:"is_available"`
}

// IsUnlimited は販売数が無制限かを返す
func (t *TicketType) IsUnlimited() bool {
	return t.Quantity == UnlimitedQuantity
}

// Remaining は残り枚数を返す。無制限の場合は -1
func (t *TicketType) Remaining() int {
	if t.IsUnlimited() {
		return UnlimitedQuantity
	}
	if r := t.Quantity - t.Sold; r > 0 {
		return r
	}
	return 0
}

// inSaleWindow は販売期間内かを返す。期間は開始・終了の両方が設定されている場合のみ適用する
func (t *TicketType) inSaleWindow(now time.Time) bool {
	if t.SaleStartDate == nil || t.SaleEndDate == nil {
		return true
	}
	return !now.Before(*t.SaleStartDate) && !now.After(*t.SaleEndDate)
}

// CheckAvailable は now 時点で1枚確保できるかを検証する
func (t *TicketType) CheckAvailable(now time.Time) error {
	if !t.IsAvailable {
		return ErrTicketNotOnSale
	}
	if !t.IsUnlimited() && t.Sold >= t.Quantity {
		return ErrTicketSoldOut
	}
	if !t.inSaleWindow(now) {
		return ErrTicketOutsideSaleWindow
	}
	return nil
}

// Validate はチケット種別の検証を行う
func (t *TicketType) Validate() error {
	if t.Name == "" {
		return ErrTicketTypeNameRequired
	}
	if t.Price < 0 {
		return ErrInvalidTicketPrice
	}
	if t.Quantity < UnlimitedQuantity {
		return ErrInvalidTicketQuantity
	}
	if !t.IsUnlimited() && t.Sold > t.Quantity {
		return ErrQuantityBelowSold
	}
	if t.SaleStartDate != nil && t.SaleEndDate != nil && t.SaleEndDate.Before(*t.SaleStartDate) {
		return ErrInvalidSaleWindow
	}
	return nil
}

// FindTicketType はIDからチケット種別を返す
func (e *Event) FindTicketType(id string) (*TicketType, error) {
	for i := range e.TicketTypes {
		if e.TicketTypes[i].ID == id {
			return &e.TicketTypes[i], nil
		}
	}
	return nil, ErrTicketTypeNotFound
}

// ReserveTicket はチケットを1枚確保し、販売済み数を1増やす。
// 呼び出し側は同一イベントに対する読み取り〜書き込みが他の確保処理と交錯しないことを保証すること
func (e *Event) ReserveTicket(id string, now time.Time) (TicketType, error) {
	t, err := e.FindTicketType(id)
	if err != nil {
		return TicketType{}, err
	}
	if err := t.CheckAvailable(now); err != nil {
		return TicketType{}, err
	}
	t.Sold++
	return *t, nil
}
