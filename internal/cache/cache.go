// Package cache memoizes domain-local trial outcomes. Entries are write-once:
// a second insert for the same key is a no-op, since the search that produced
// it is idempotent.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

type Key struct {
	Origin model.Cell
	Goal   string
	Modes  model.ModeTypeSet
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Origin, k.Goal, k.Modes)
}

// Entry is either a path or a known-unreachable marker.
type Entry struct {
	Reachable bool
	Path      model.Path
}

func Hit(p model.Path) Entry { return Entry{Reachable: true, Path: p} }

func Unreachable() Entry { return Entry{Path: model.InvalidPath} }

type Cache interface {
	Lookup(ctx context.Context, k Key) (Entry, bool, error)
	// Insert stores e unless k already has an entry and reports whether it
	// wrote.
	Insert(ctx context.Context, k Key, e Entry) (bool, error)
	Clear(ctx context.Context) error
}

func validate(k Key, e Entry) error {
	if k.Goal == "" {
		return fmt.Errorf("cache key without goal")
	}
	if !e.Reachable {
		return nil
	}
	if !e.Path.Valid() {
		return fmt.Errorf("reachable entry without path: %w", model.ErrEmptyPath)
	}
	if e.Path.Origin() != k.Origin {
		return fmt.Errorf("path starts at %s, key origin %s", e.Path.Origin(), k.Origin)
	}
	return model.SameDomain(e.Path.Origin(), e.Path.Destination())
}

// Memory is a mutex-guarded map.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	hits    uint64
	misses  uint64
}

func NewMemory() *Memory {
	return &Memory{entries: map[Key]Entry{}}
}

func (m *Memory) Lookup(_ context.Context, k Key) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return e, ok, nil
}

func (m *Memory) Insert(_ context.Context, k Key, e Entry) (bool, error) {
	if err := validate(k, e); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[k]; ok {
		return false, nil
	}
	m.entries[k] = e
	return true, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = map[Key]Entry{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns lookup hit and miss counts.
func (m *Memory) Stats() (hits, misses uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}
