package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/storage/memory"
)

func TestCredentials_StateRoundTrip(t *testing.T) {
	creds := storage.NewCredentials(memory.NewStore())
	ctx := context.Background()

	t.Run("未初始化的信箱没有状态", func(t *testing.T) {
		_, err := creds.ReadState(ctx, 7, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("写入后读回", func(t *testing.T) {
		require.NoError(t, creds.WriteState(ctx, 7, 2, domain.StateLoggedOut))

		state, err := creds.ReadState(ctx, 7, 2)
		require.NoError(t, err)
		assert.Equal(t, domain.StateLoggedOut, state)
	})

	t.Run("偏移转移经过存储往返", func(t *testing.T) {
		next, err := creds.ShiftState(ctx, 7, 2, +1)
		require.NoError(t, err)
		assert.Equal(t, domain.StateLoginPending, next)

		// 存储中的值必须同步更新
		state, err := creds.ReadState(ctx, 7, 2)
		require.NoError(t, err)
		assert.Equal(t, domain.StateLoginPending, state)

		next, err = creds.ShiftState(ctx, 7, 2, -1)
		require.NoError(t, err)
		assert.Equal(t, domain.StateLoggedOut, next)
	})

	t.Run("沙箱之间互不可见", func(t *testing.T) {
		_, err := creds.ReadState(ctx, 8, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestCredentials_Pin(t *testing.T) {
	creds := storage.NewCredentials(memory.NewStore())
	ctx := context.Background()

	t.Run("从未设置过 PIN 是独立的结果", func(t *testing.T) {
		_, err := creds.ReadPIN(ctx, 7, 3)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("写入后读回", func(t *testing.T) {
		require.NoError(t, creds.WritePIN(ctx, 7, 2, "7319"))

		pin, err := creds.ReadPIN(ctx, 7, 2)
		require.NoError(t, err)
		assert.Equal(t, "7319", pin)
	})
}

func TestCredentials_Visitor(t *testing.T) {
	creds := storage.NewCredentials(memory.NewStore())
	ctx := context.Background()

	t.Run("初始无签发标记", func(t *testing.T) {
		has, err := creds.HasVisitor(ctx, 7, 2)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("标记不存在时清除视为无操作", func(t *testing.T) {
		assert.NoError(t, creds.ClearVisitor(ctx, 7, 2))
	})

	t.Run("设置后可见", func(t *testing.T) {
		require.NoError(t, creds.SetVisitor(ctx, 7, 2))

		has, err := creds.HasVisitor(ctx, 7, 2)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("清除后消失", func(t *testing.T) {
		require.NoError(t, creds.ClearVisitor(ctx, 7, 2))

		has, err := creds.HasVisitor(ctx, 7, 2)
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestCredentials_WipeSandbox(t *testing.T) {
	creds := storage.NewCredentials(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, creds.WritePIN(ctx, 7, 2, "7319"))
	require.NoError(t, creds.WriteState(ctx, 7, 2, domain.StateAuthenticated))
	require.NoError(t, creds.WritePIN(ctx, 9, 5, "2442"))

	t.Run("清空沙箱", func(t *testing.T) {
		require.NoError(t, creds.WipeSandbox(ctx, 7))

		_, err := creds.ReadPIN(ctx, 7, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = creds.ReadState(ctx, 7, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("其他沙箱保留", func(t *testing.T) {
		pin, err := creds.ReadPIN(ctx, 9, 5)
		require.NoError(t, err)
		assert.Equal(t, "2442", pin)
	})

	t.Run("沙箱不存在时视为无操作", func(t *testing.T) {
		assert.NoError(t, creds.WipeSandbox(ctx, 7))
	})
}
