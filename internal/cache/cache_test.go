package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

func TestMemoryContract(t *testing.T) {
	RunContract(t, NewMemory())
}

func TestRedisContract(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	RunContract(t, NewRedisFromClient(client, WithPrefix("test:leg:")))
}

func TestRedisTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c := NewRedisFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), WithTTL(time.Minute))
	k := Key{Origin: model.C("overworld", 0, 4, 0), Goal: "g", Modes: model.NewModeTypeSet(model.ModeWalk)}
	wrote, err := c.Insert(context.Background(), k, Unreachable())
	require.NoError(t, err)
	require.True(t, wrote)

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Lookup(context.Background(), k)
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire")
}

func TestMemoryExportImport(t *testing.T) {
	src := NewMemory()
	origin := model.C("overworld", 0, 4, 0)
	p, err := model.NewPath([]model.Step{{Cell: origin}, {Cell: model.C("overworld", 0, 4, 1), Mode: model.ModeWalk}}, 1)
	require.NoError(t, err)
	_, err = src.Insert(context.Background(), Key{Origin: origin, Goal: "a", Modes: 2}, Hit(p))
	require.NoError(t, err)
	_, err = src.Insert(context.Background(), Key{Origin: origin, Goal: "b", Modes: 2}, Unreachable())
	require.NoError(t, err)

	records := src.Export()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].GoalKey)

	dst := NewMemory()
	n, err := dst.Import(records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, ok, _ := dst.Lookup(context.Background(), Key{Origin: origin, Goal: "a", Modes: 2})
	require.True(t, ok)
	assert.Equal(t, p.Steps(), got.Path.Steps())

	n, err = dst.Import(records)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "import is write-once too")

	hits, misses := dst.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(0), misses)
}
