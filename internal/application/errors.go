package application

import "errors"

// アプリケーション層のエラー定義
var (
	// ErrValidation は入力検証エラー。ドメインの検証エラーと併せてラップする
	ErrValidation = errors.New("バリデーションエラー")

	// ErrEventBusy はイベントの登録ロックを取得できなかった場合のエラー
	ErrEventBusy = errors.New("イベントが他の登録処理中です。しばらくしてから再度お試しください")
)
