package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

// RunContract checks the behavior every Store must share. fresh returns an
// empty store.
func RunContract(t *testing.T, fresh func(t *testing.T) Store) {
	ctx := context.Background()
	a := model.Port{Origin: model.C("overworld", 8, 4, 8), Destination: model.C("nether", 1, 4, 1), Mode: model.ModeNetherPortal, Cost: 4}
	b := model.Port{Origin: model.C("nether", 1, 4, 1), Destination: model.C("overworld", 8, 4, 8), Mode: model.ModeNetherPortal, Cost: 4}
	c := model.Port{Origin: model.C("overworld", 0, 4, 0), Destination: model.C("end", 0, 4, 0), Mode: model.ModeTeleport, Cost: 1}

	seed := func(t *testing.T) Store {
		s := fresh(t)
		for _, p := range []model.Port{a, b, c} {
			require.NoError(t, s.Add(ctx, p))
		}
		return s
	}

	t.Run("insertion order and mode filter", func(t *testing.T) {
		s := seed(t)
		all, err := s.All(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []model.Port{a, b, c}, all)

		portals, err := s.All(ctx, model.NewModeTypeSet(model.ModeNetherPortal))
		require.NoError(t, err)
		assert.Equal(t, []model.Port{a, b}, portals)
	})

	t.Run("endpoint lookups", func(t *testing.T) {
		s := seed(t)
		from, err := s.WithOrigin(ctx, a.Origin)
		require.NoError(t, err)
		assert.Equal(t, []model.Port{a}, from)
		to, err := s.WithDestination(ctx, a.Origin)
		require.NoError(t, err)
		assert.Equal(t, []model.Port{b}, to)
		none, err := s.WithOrigin(ctx, model.C("end", 5, 5, 5))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("re-add replaces cost in place", func(t *testing.T) {
		s := seed(t)
		a2 := a
		a2.Cost = 9
		require.NoError(t, s.Add(ctx, a2))
		all, err := s.All(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 9.0, all[0].Cost)
	})

	t.Run("remove", func(t *testing.T) {
		s := seed(t)
		ok, err := s.Remove(ctx, b.Key())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Remove(ctx, b.Key())
		require.NoError(t, err)
		assert.False(t, ok)
		all, err := s.All(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []model.Port{a, c}, all)
	})

	t.Run("rejects invalid ports", func(t *testing.T) {
		s := fresh(t)
		same := model.Port{Origin: model.C("overworld", 0, 0, 0), Destination: model.C("overworld", 5, 0, 0), Mode: model.ModeTeleport, Cost: 1}
		assert.ErrorIs(t, s.Add(ctx, same), ErrSameDomain)
		neg := model.Port{Origin: model.C("a", 0, 0, 0), Destination: model.C("b", 0, 0, 0), Mode: model.ModeTeleport, Cost: -1}
		assert.Error(t, s.Add(ctx, neg))
		all, err := s.All(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
