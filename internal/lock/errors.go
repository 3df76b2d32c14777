package lock

import "errors"

var (
	// ErrUnavailable は waitBudget 以内にロックを取得できなかったことを示す
	ErrUnavailable = errors.New("ロックを取得できませんでした")
	// ErrNotOwned は解放しようとしたロックの所有者でないことを示す
	// （リースが既に自然失効し、別の保持者が取得した場合など）
	ErrNotOwned = errors.New("ロックの所有者ではありません")
)
