package user

import "errors"

// User ドメインのエラー定義
var (
	ErrUserNotFound         = errors.New("ユーザーが見つかりません")
	ErrUserAlreadyExists    = errors.New("ユーザーは既に存在します")
	ErrNotificationNotFound = errors.New("通知が見つかりません")
	ErrUnauthenticated      = errors.New("認証が必要です")
	ErrAdminRequired        = errors.New("この操作には管理者権限が必要です")
	ErrInvalidRole          = errors.New("不正なロールです")

	ErrNotificationContentRequired = errors.New("通知のタイトルと本文は必須です")
	ErrUnknownNotificationType     = errors.New("未定義の通知種別です")
)
