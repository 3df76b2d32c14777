package ticket

import "errors"

// Ticket ドメインのエラー定義
var (
	ErrNotFound     = errors.New("チケットが見つかりません")
	ErrNotAvailable = errors.New("チケットは予約できません")
)
