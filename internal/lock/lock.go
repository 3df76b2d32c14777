package lock

import (
	"context"
	"time"
)

// Lock は取得済みのリースを表す。保持者はこれを Release に渡すことで
// 解放できる。リース期限が自然に切れた後の Release は no-op
type Lock interface {
	// Key はロック対象のキーを返す
	Key() string
	// Token は所有権を証明するフェンシングトークンを返す
	Token() string
}

// Manager はキーに対するリースの排他的な取得・解放を管理する。
// 本番用（複数レプリカを跨ぐ）と単一プロセス用の実装を同じインターフェースの
// 裏に隠す。呼び出し側はどちらが使われているかを知らない
type Manager interface {
	// Acquire は key に対する排他リースを取得する。waitBudget 以内に
	// 取得できなければ ErrUnavailable を返す。取得に成功したリースは
	// leaseBudget が経過すると自動的に失効する
	Acquire(ctx context.Context, key string, waitBudget, leaseBudget time.Duration) (Lock, error)

	// Release は取得済みのロックを解放する。トークンが一致しない
	// （リース失効後に別の保持者が取得済み）場合は ErrNotOwned を返す
	Release(ctx context.Context, l Lock) error
}
