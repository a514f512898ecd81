// Package mode implements the movement capabilities. Each Mode is a ModeType
// bound to a pure function that proposes weighted neighbor cells.
package mode

import (
	"fmt"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

type Destination struct {
	Cell model.Cell
	Cost float64
	Mode model.ModeType
}

// Func never caches oracle answers and returns an empty slice when no move is
// legal. Errors are oracle faults or malformed flags.
type Func func(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error)

type Mode struct {
	typ model.ModeType
	fn  Func
}

func New(t model.ModeType, fn Func) Mode {
	return Mode{typ: t, fn: fn}
}

func (m Mode) Type() model.ModeType { return m.typ }

func (m Mode) Destinations(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	if m.fn == nil {
		return nil, nil
	}
	out, err := m.fn(c, o, f)
	if err != nil {
		return nil, fmt.Errorf("%s from %s: %w", m.typ, c, err)
	}
	return out, nil
}

var builtin = map[model.ModeType]Func{
	model.ModeWalk:  walk,
	model.ModeJump:  jump,
	model.ModeSwim:  swim,
	model.ModeClimb: climb,
	model.ModeFly:   fly,
	model.ModeDig:   dig,
	model.ModeDoor:  door,
	model.ModeBoat:  boat,
}

// ForType returns the built-in mode for t.
func ForType(t model.ModeType) (Mode, error) {
	fn, ok := builtin[t]
	if !ok {
		return Mode{}, fmt.Errorf("no built-in mode for %s", t)
	}
	return New(t, fn), nil
}

// ForTypes resolves a set in ModeType order.
func ForTypes(set model.ModeTypeSet) ([]Mode, error) {
	out := make([]Mode, 0, set.Len())
	for _, t := range set.Types() {
		m, err := ForType(t)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func Types(modes []Mode) model.ModeTypeSet {
	var s model.ModeTypeSet
	for _, m := range modes {
		s = s.With(m.Type())
	}
	return s
}

// PathValid reports whether each adjacent pair of steps is an edge proposed by
// at least one of modes.
func PathValid(p model.Path, modes []Mode, o terrain.Oracle, f flags.Set) (bool, error) {
	if !p.Valid() {
		return false, nil
	}
	for i := 1; i < p.Len(); i++ {
		from := p.Step(i - 1).Cell
		to := p.Step(i).Cell
		ok := false
		for _, m := range modes {
			dests, err := m.Destinations(from, o, f)
			if err != nil {
				return false, err
			}
			for _, d := range dests {
				if d.Cell == to {
					ok = true
					break
				}
			}
			if ok {
				break
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
