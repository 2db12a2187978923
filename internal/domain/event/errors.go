package event

import (
	"errors"
	"fmt"
)

// Event ドメインのエラー定義
var (
	ErrEventNotFound           = errors.New("イベントが見つかりません")
	ErrEventTitleRequired      = errors.New("イベント名は必須です")
	ErrInvalidEventTime        = errors.New("終了時刻は開始時刻より後である必要があります")
	ErrEventNotPublished       = errors.New("公開中のイベントではないため登録できません")
	ErrInvalidStatusTransition = errors.New("許可されていない状態遷移です")
	ErrEventTerminal           = errors.New("中止・終了済みイベントの構成は変更できません")
	ErrPermissionDenied        = errors.New("このイベントを操作する権限がありません")
	ErrConcurrencyConflict     = errors.New("楽観的ロックの競合が発生しました")

	ErrTicketTypeNotFound     = errors.New("チケット種別が見つかりません")
	ErrTicketTypeNameRequired = errors.New("チケット種別名は必須です")
	ErrInvalidTicketPrice     = errors.New("価格は0以上である必要があります")
	ErrInvalidTicketQuantity  = errors.New("販売数は0以上（無制限は-1）である必要があります")
	ErrInvalidSaleWindow      = errors.New("販売終了日時は販売開始日時より後である必要があります")
	ErrQuantityBelowSold      = errors.New("販売数を販売済み数より小さくはできません")
	ErrTicketTypeInUse        = errors.New("販売済みのチケット種別は削除できません")
	ErrDuplicateTicketTypeID  = errors.New("チケット種別IDが重複しています")

	// ErrTicketUnavailable はチケットが取得できない場合の総称。原因は下記のエラーで区別する
	ErrTicketUnavailable       = errors.New("チケットを取得できません")
	ErrTicketNotOnSale         = fmt.Errorf("%w: 販売停止中です", ErrTicketUnavailable)
	ErrTicketSoldOut           = fmt.Errorf("%w: 完売しました", ErrTicketUnavailable)
	ErrTicketOutsideSaleWindow = fmt.Errorf("%w: 販売期間外です", ErrTicketUnavailable)

	ErrAlreadyRegistered         = errors.New("既にこのイベントに登録済みです")
	ErrInvalidAmountPaid         = errors.New("支払金額は0以上である必要があります")
	ErrConfirmationCodeExhausted = errors.New("確認コードを生成できませんでした")
	ErrAttendeeRequired          = errors.New("登録者のユーザーIDは必須です")
)
