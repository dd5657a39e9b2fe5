package qualification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	store, err := NewStore(db, "blocked_model_chat", nil)
	require.NoError(t, err)
	return store
}

func TestStoreGrantPunitive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("grant then has", func(t *testing.T) {
		has, err := store.Has(ctx, "worker-1")
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, store.GrantPunitive(ctx, "worker-1", "rude"))

		has, err = store.Has(ctx, "worker-1")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("regrant is idempotent", func(t *testing.T) {
		require.NoError(t, store.GrantPunitive(ctx, "worker-2", "all_caps"))
		require.NoError(t, store.GrantPunitive(ctx, "worker-2", "all_caps"))

		var count int64
		require.NoError(t, store.db.Model(&WorkerQualification{}).
			Where("worker_id = ?", "worker-2").Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("workers are independent", func(t *testing.T) {
		has, err := store.Has(ctx, "worker-3")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestMemoryGranter(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGranter()

	require.NoError(t, g.GrantPunitive(ctx, "worker-1", "rude"))
	require.NoError(t, g.GrantPunitive(ctx, "worker-1", "rude"))
	assert.Equal(t, 1, g.Count())

	require.NoError(t, g.GrantPunitive(ctx, "worker-2", "exact_match"))
	grants := g.Grants()
	require.Len(t, grants, 2)
	assert.Equal(t, "worker-1", grants[0].WorkerID)
	assert.Equal(t, "rude", grants[0].Reason)
}
