package memlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/ticket-reservation/internal/lock"
)

// entry は保持中のリース一件分の状態
type entry struct {
	token     string
	expiresAt time.Time
}

// memLock は Manager.Acquire が返す取得済みリース
type memLock struct {
	key   string
	token string
}

func (l *memLock) Key() string   { return l.key }
func (l *memLock) Token() string { return l.token }

// Manager は単一プロセス内でのみ有効な Manager 実装。単一レプリカの
// デプロイやテストで Redis への依存を避けるために使う
type Manager struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New は Manager を作成する
func New() *Manager {
	return &Manager{entries: make(map[string]entry)}
}

// Acquire は waitBudget が尽きるまでロックの空きをポーリングする
func (m *Manager) Acquire(ctx context.Context, key string, waitBudget, leaseBudget time.Duration) (lock.Lock, error) {
	deadline := time.Now().Add(waitBudget)
	for {
		if l, ok := m.tryAcquire(key, leaseBudget); ok {
			return l, nil
		}
		if time.Now().After(deadline) {
			return nil, lock.ErrUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Manager) tryAcquire(key string, leaseBudget time.Duration) (lock.Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, ok := m.entries[key]; ok && e.expiresAt.After(now) {
		return nil, false
	}

	token := uuid.New().String()
	m.entries[key] = entry{token: token, expiresAt: now.Add(leaseBudget)}
	return &memLock{key: key, token: token}, true
}

// Release はロックを解放する。リース失効後に別の保持者が取得済みなら
// ErrNotOwned を返す
func (m *Manager) Release(_ context.Context, l lock.Lock) error {
	ml, ok := l.(*memLock)
	if !ok {
		return lock.ErrNotOwned
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[ml.key]
	if !ok || e.token != ml.token {
		return lock.ErrNotOwned
	}
	delete(m.entries, ml.key)
	return nil
}

var _ lock.Manager = (*Manager)(nil)
