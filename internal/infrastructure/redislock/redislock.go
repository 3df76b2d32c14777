package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/ticket-reservation/internal/lock"
)

// pollInterval は waitBudget の間に SETNX を再試行する間隔
const pollInterval = 50 * time.Millisecond

// redisLock は Manager.Acquire が返す取得済みリース
type redisLock struct {
	key   string
	token string
}

func (l *redisLock) Key() string   { return l.key }
func (l *redisLock) Token() string { return l.token }

// Manager は Redis を使用した分散ロックの本番用実装。SETNX + PX で
// リースを取得し、Lua スクリプトで所有者確認と削除をアトミックに行う
type Manager struct {
	client *redis.Client
}

// New は Manager を作成する
func New(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// Acquire は waitBudget が尽きるまで SETNX をポーリングする。取得できた
// リースは leaseBudget で自動的に失効する（PX オプション）
func (m *Manager) Acquire(ctx context.Context, key string, waitBudget, leaseBudget time.Duration) (lock.Lock, error) {
	redisKey := lockKey(key)
	token := uuid.New().String()

	deadline := time.Now().Add(waitBudget)
	for {
		ok, err := m.client.SetNX(ctx, redisKey, token, leaseBudget).Result()
		if err != nil {
			return nil, fmt.Errorf("ロック取得に失敗しました: %w", err)
		}
		if ok {
			return &redisLock{key: redisKey, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, lock.ErrUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// releaseScript は値が自分のトークンと一致する場合のみ削除する
// （リース失効後に別の保持者が取得済みのキーを誤って消さないため）
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Release はロックを解放する
func (m *Manager) Release(ctx context.Context, l lock.Lock) error {
	rl, ok := l.(*redisLock)
	if !ok {
		return errors.New("このマネージャーで取得されたロックではありません")
	}

	result, err := m.client.Eval(ctx, releaseScript, []string{rl.key}, rl.token).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗しました: %w", err)
	}
	if result == 0 {
		return lock.ErrNotOwned
	}
	return nil
}

func lockKey(key string) string {
	return "lock:" + key
}

var _ lock.Manager = (*Manager)(nil)
