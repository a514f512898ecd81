package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

// RunContract checks the behavior every Cache implementation must share.
func RunContract(t *testing.T, c Cache) {
	ctx := context.Background()
	origin := model.C("overworld", 0, 4, 0)
	path, err := model.NewPath([]model.Step{
		{Cell: origin},
		{Cell: model.C("overworld", 1, 4, 0), Mode: model.ModeWalk},
		{Cell: model.C("overworld", 2, 4, 0), Mode: model.ModeWalk},
	}, 2)
	require.NoError(t, err)
	k := Key{Origin: origin, Goal: "dest:overworld(2,4,0)~0", Modes: model.NewModeTypeSet(model.ModeWalk)}

	t.Run("miss then hit", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		_, ok, err := c.Lookup(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)

		wrote, err := c.Insert(ctx, k, Hit(path))
		require.NoError(t, err)
		assert.True(t, wrote)

		got, ok, err := c.Lookup(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Reachable)
		assert.Equal(t, path.Steps(), got.Path.Steps())
		assert.Equal(t, path.Cost(), got.Path.Cost())
	})

	t.Run("write once", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		_, err := c.Insert(ctx, k, Hit(path))
		require.NoError(t, err)
		wrote, err := c.Insert(ctx, k, Unreachable())
		require.NoError(t, err)
		assert.False(t, wrote)
		got, _, err := c.Lookup(ctx, k)
		require.NoError(t, err)
		assert.True(t, got.Reachable, "second write must not replace the first")
	})

	t.Run("mode set is part of the key", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		_, err := c.Insert(ctx, k, Hit(path))
		require.NoError(t, err)
		other := k
		other.Modes = other.Modes.With(model.ModeJump)
		_, ok, err := c.Lookup(ctx, other)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unreachable marker", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		wrote, err := c.Insert(ctx, k, Unreachable())
		require.NoError(t, err)
		assert.True(t, wrote)
		got, ok, err := c.Lookup(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, got.Reachable)
	})

	t.Run("rejects foreign paths", func(t *testing.T) {
		bad := k
		bad.Origin = model.C("overworld", 9, 4, 9)
		_, err := c.Insert(ctx, bad, Hit(path))
		assert.Error(t, err)
	})

	t.Run("concurrent inserts write once", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		var wg sync.WaitGroup
		var mu sync.Mutex
		writes := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wrote, err := c.Insert(ctx, k, Hit(path))
				assert.NoError(t, err)
				if wrote {
					mu.Lock()
					writes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, writes)
	})

	t.Run("clear", func(t *testing.T) {
		_, err := c.Insert(ctx, k, Hit(path))
		require.NoError(t, err)
		require.NoError(t, c.Clear(ctx))
		_, ok, err := c.Lookup(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
