package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebox/backend/internal/storage"
)

func TestStore_GetPutDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	t.Run("读取不存在的键", func(t *testing.T) {
		_, err := store.Get(ctx, "sb_7", "2_pin")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("写入后读取", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "sb_7", "2_pin", "7319"))

		value, err := store.Get(ctx, "sb_7", "2_pin")
		require.NoError(t, err)
		assert.Equal(t, "7319", value)
	})

	t.Run("幂等覆盖", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "sb_7", "2_pin", "2442"))

		value, err := store.Get(ctx, "sb_7", "2_pin")
		require.NoError(t, err)
		assert.Equal(t, "2442", value)
	})

	t.Run("命名空间互相隔离", func(t *testing.T) {
		_, err := store.Get(ctx, "sb_8", "2_pin")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("删除存在的键", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "sb_7", "2_pin"))

		_, err := store.Get(ctx, "sb_7", "2_pin")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("删除不存在的键", func(t *testing.T) {
		err := store.Delete(ctx, "sb_7", "2_pin")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_DeleteSubtree(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sb_7", "2_pin", "7319"))
	require.NoError(t, store.Put(ctx, "sb_7", "2_state", "3"))
	require.NoError(t, store.Put(ctx, "sb_9", "5_pin", "2442"))

	t.Run("清空整个命名空间", func(t *testing.T) {
		require.NoError(t, store.DeleteSubtree(ctx, "sb_7"))

		_, err := store.Get(ctx, "sb_7", "2_pin")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.Get(ctx, "sb_7", "2_state")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("其他命名空间不受影响", func(t *testing.T) {
		value, err := store.Get(ctx, "sb_9", "5_pin")
		require.NoError(t, err)
		assert.Equal(t, "2442", value)
	})

	t.Run("不存在的命名空间", func(t *testing.T) {
		err := store.DeleteSubtree(ctx, "sb_7")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_Health(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.Health())
	assert.NoError(t, store.Close())
}
