package roster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdchat/parley/types"
)

func TestNew(t *testing.T) {
	t.Run("empty map rejected", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
	})

	t.Run("non-positive count rejected", func(t *testing.T) {
		_, err := New(map[string]int{"variant-a": 0}, nil)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
	})
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("most-needed variant first", func(t *testing.T) {
		r, err := New(map[string]int{"variant-a": 1, "variant-b": 3}, nil)
		require.NoError(t, err)

		name, err := r.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "variant-b", name)
	})

	t.Run("exhaustion", func(t *testing.T) {
		r, err := New(map[string]int{"variant-a": 1}, nil)
		require.NoError(t, err)

		name, err := r.Acquire(ctx)
		require.NoError(t, err)
		r.Complete(name)

		_, err = r.Acquire(ctx)
		assert.True(t, types.IsErrorCode(err, types.ErrVariantExhausted))
		assert.True(t, r.Done())
	})

	t.Run("release re-credits", func(t *testing.T) {
		r, err := New(map[string]int{"variant-a": 1}, nil)
		require.NoError(t, err)

		name, err := r.Acquire(ctx)
		require.NoError(t, err)
		r.Release(name)

		name, err = r.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "variant-a", name)
	})

	t.Run("waits for a released slot", func(t *testing.T) {
		r, err := New(map[string]int{"variant-a": 1}, nil)
		require.NoError(t, err)

		first, err := r.Acquire(ctx)
		require.NoError(t, err)

		got := make(chan string, 1)
		go func() {
			name, err := r.Acquire(ctx)
			if err == nil {
				got <- name
			}
		}()

		time.Sleep(20 * time.Millisecond)
		r.Release(first)

		select {
		case name := <-got:
			assert.Equal(t, "variant-a", name)
		case <-time.After(time.Second):
			t.Fatal("waiting Acquire never woke up after Release")
		}
	})

	t.Run("concurrent acquires never oversubscribe", func(t *testing.T) {
		const perVariant = 5
		r, err := New(map[string]int{"variant-a": perVariant, "variant-b": perVariant}, nil)
		require.NoError(t, err)

		var mu sync.Mutex
		counts := make(map[string]int)
		var wg sync.WaitGroup
		for i := 0; i < 2*perVariant+4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				name, err := r.Acquire(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				counts[name]++
				mu.Unlock()
				r.Complete(name)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, counts["variant-a"], perVariant)
		assert.LessOrEqual(t, counts["variant-b"], perVariant)
		assert.Equal(t, 2*perVariant, counts["variant-a"]+counts["variant-b"])
	})

	t.Run("close wakes waiters", func(t *testing.T) {
		r, err := New(map[string]int{"variant-a": 1}, nil)
		require.NoError(t, err)
		_, err = r.Acquire(ctx)
		require.NoError(t, err)

		errCh := make(chan error, 1)
		go func() {
			_, err := r.Acquire(ctx)
			errCh <- err
		}()
		time.Sleep(20 * time.Millisecond)
		r.Close()

		select {
		case err := <-errCh:
			assert.True(t, types.IsErrorCode(err, types.ErrClosed))
		case <-time.After(time.Second):
			t.Fatal("waiter not woken by Close")
		}
	})
}
