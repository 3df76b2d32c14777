package memlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/ticket-reservation/internal/lock"
)

func TestManager_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("ロックを取得できる", func(t *testing.T) {
		m := New()
		l, err := m.Acquire(ctx, "test-key-1", 100*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, l)
		defer m.Release(ctx, l)
	})

	t.Run("同じキーのロックは取得できない", func(t *testing.T) {
		m := New()
		l1, err := m.Acquire(ctx, "test-key-2", 100*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		defer m.Release(ctx, l1)

		_, err = m.Acquire(ctx, "test-key-2", 100*time.Millisecond, 5*time.Second)
		assert.ErrorIs(t, err, lock.ErrUnavailable)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		m := New()
		l1, err := m.Acquire(ctx, "test-key-3", 100*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, m.Release(ctx, l1))

		l2, err := m.Acquire(ctx, "test-key-3", 100*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		defer m.Release(ctx, l2)
	})

	t.Run("リースが自然失効すれば再取得できる", func(t *testing.T) {
		m := New()
		_, err := m.Acquire(ctx, "test-key-4", 100*time.Millisecond, 50*time.Millisecond)
		require.NoError(t, err)

		l2, err := m.Acquire(ctx, "test-key-4", 200*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		defer m.Release(ctx, l2)
	})

	t.Run("失効後の解放はErrNotOwned", func(t *testing.T) {
		m := New()
		l1, err := m.Acquire(ctx, "test-key-5", 100*time.Millisecond, 50*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		l2, err := m.Acquire(ctx, "test-key-5", 100*time.Millisecond, 5*time.Second)
		require.NoError(t, err)
		defer m.Release(ctx, l2)

		err = m.Release(ctx, l1)
		assert.ErrorIs(t, err, lock.ErrNotOwned)
	})
}
