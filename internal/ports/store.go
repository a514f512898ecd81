// Package ports keeps the live set of inter-domain ports the router plans
// over.
package ports

import (
	"context"
	"errors"
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

var ErrSameDomain = errors.New("port must connect two different domains")

// Store may change at runtime. Sessions take a snapshot with All when they
// plan, so later changes never affect a search in flight.
type Store interface {
	Add(ctx context.Context, p model.Port) error
	Remove(ctx context.Context, k model.PortKey) (bool, error)
	WithOrigin(ctx context.Context, c model.Cell) ([]model.Port, error)
	WithDestination(ctx context.Context, c model.Cell) ([]model.Port, error)
	// All returns ports whose mode is in modes, or every port when modes is
	// empty, in insertion order.
	All(ctx context.Context, modes model.ModeTypeSet) ([]model.Port, error)
}

// Check validates a port before it enters any store.
func Check(p model.Port) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Origin.Domain == p.Destination.Domain {
		return ErrSameDomain
	}
	return nil
}

// Memory is an ordered in-process store. Adding an existing key replaces its
// cost and keeps its position.
type Memory struct {
	mu    sync.RWMutex
	order []model.PortKey
	ports map[model.PortKey]model.Port
}

func NewMemory(initial ...model.Port) (*Memory, error) {
	m := &Memory{ports: map[model.PortKey]model.Port{}}
	for _, p := range initial {
		if err := m.Add(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Memory) Add(_ context.Context, p model.Port) error {
	if err := Check(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := p.Key()
	if _, ok := m.ports[k]; !ok {
		m.order = append(m.order, k)
	}
	m.ports[k] = p
	return nil
}

func (m *Memory) Remove(_ context.Context, k model.PortKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ports[k]; !ok {
		return false, nil
	}
	delete(m.ports, k)
	for i, ok := range m.order {
		if ok == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) filter(keep func(model.Port) bool) []model.Port {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Port
	for _, k := range m.order {
		if p := m.ports[k]; keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) WithOrigin(_ context.Context, c model.Cell) ([]model.Port, error) {
	return m.filter(func(p model.Port) bool { return p.Origin == c }), nil
}

func (m *Memory) WithDestination(_ context.Context, c model.Cell) ([]model.Port, error) {
	return m.filter(func(p model.Port) bool { return p.Destination == c }), nil
}

func (m *Memory) All(_ context.Context, modes model.ModeTypeSet) ([]model.Port, error) {
	return m.filter(func(p model.Port) bool { return modes.Len() == 0 || modes.Has(p.Mode) }), nil
}
