package cache

import (
	"context"
	"sort"

	"github.com/whimxiqal/journey-sub005/internal/model"
	snapv1 "github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
)

func cellRecord(c model.Cell) snapv1.CellV1 {
	return snapv1.CellV1{Domain: string(c.Domain), X: c.X, Y: c.Y, Z: c.Z}
}

func cellFromRecord(r snapv1.CellV1) model.Cell {
	return model.C(model.DomainID(r.Domain), r.X, r.Y, r.Z)
}

func toRecord(k Key, e Entry) snapv1.CacheEntryV1 {
	r := snapv1.CacheEntryV1{
		Origin:    cellRecord(k.Origin),
		GoalKey:   k.Goal,
		Modes:     uint32(k.Modes),
		Reachable: e.Reachable,
	}
	if e.Reachable {
		r.Cost = e.Path.Cost()
		for _, s := range e.Path.Steps() {
			r.Steps = append(r.Steps, snapv1.StepV1{Cell: cellRecord(s.Cell), Mode: uint8(s.Mode)})
		}
	}
	return r
}

func fromRecord(r snapv1.CacheEntryV1) (Key, Entry, error) {
	k := Key{Origin: cellFromRecord(r.Origin), Goal: r.GoalKey, Modes: model.ModeTypeSet(r.Modes)}
	if !r.Reachable {
		return k, Unreachable(), nil
	}
	steps := make([]model.Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, model.Step{Cell: cellFromRecord(s.Cell), Mode: model.ModeType(s.Mode)})
	}
	p, err := model.NewPath(steps, r.Cost)
	if err != nil {
		return k, Entry{}, err
	}
	return k, Hit(p), nil
}

// Export returns every entry ordered by key for snapshotting.
func (m *Memory) Export() []snapv1.CacheEntryV1 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]Key, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]snapv1.CacheEntryV1, 0, len(keys))
	for _, k := range keys {
		out = append(out, toRecord(k, m.entries[k]))
	}
	return out
}

// Import inserts records with write-once semantics and returns how many were
// new.
func (m *Memory) Import(records []snapv1.CacheEntryV1) (int, error) {
	n := 0
	for _, r := range records {
		k, e, err := fromRecord(r)
		if err != nil {
			return n, err
		}
		wrote, err := m.Insert(context.Background(), k, e)
		if err != nil {
			return n, err
		}
		if wrote {
			n++
		}
	}
	return n, nil
}
