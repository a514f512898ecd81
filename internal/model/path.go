package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrEmptyPath = errors.New("empty path")

type Step struct {
	Cell Cell
	Mode ModeType
}

// Path is a domain-local route. The zero Path is the invalid path and has an
// infinite cost.
type Path struct {
	steps []Step
	cost  float64
}

// InvalidPath is the sentinel for "no path".
var InvalidPath = Path{}

// NewPath validates that every step shares one domain.
func NewPath(steps []Step, cost float64) (Path, error) {
	if len(steps) == 0 {
		return InvalidPath, ErrEmptyPath
	}
	d := steps[0].Cell.Domain
	for i, s := range steps {
		if s.Cell.Domain != d {
			return InvalidPath, fmt.Errorf("step %d: %w", i, ErrCrossDomain)
		}
	}
	if cost < 0 || math.IsNaN(cost) {
		return InvalidPath, fmt.Errorf("invalid path cost %v", cost)
	}
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return Path{steps: cp, cost: cost}, nil
}

func (p Path) Valid() bool { return len(p.steps) > 0 }

func (p Path) Cost() float64 {
	if !p.Valid() {
		return math.Inf(1)
	}
	return p.cost
}

func (p Path) Len() int { return len(p.steps) }

func (p Path) Step(i int) Step { return p.steps[i] }

// Steps returns a copy.
func (p Path) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

func (p Path) Origin() Cell {
	if !p.Valid() {
		return Cell{}
	}
	return p.steps[0].Cell
}

func (p Path) Destination() Cell {
	if !p.Valid() {
		return Cell{}
	}
	return p.steps[len(p.steps)-1].Cell
}

func (p Path) Domain() DomainID { return p.Origin().Domain }

// Modes is the set of mode types used by the path's edges.
func (p Path) Modes() ModeTypeSet {
	var s ModeTypeSet
	for i := 1; i < len(p.steps); i++ {
		s = s.With(p.steps[i].Mode)
	}
	return s
}

func (p Path) String() string {
	if !p.Valid() {
		return "path(invalid)"
	}
	return fmt.Sprintf("path(%s -> %s, %d steps, cost=%.3f)", p.Origin(), p.Destination(), len(p.steps), p.cost)
}

// Port is a fixed-cost jump between two cells, usually in different domains.
type Port struct {
	Origin      Cell
	Destination Cell
	Mode        ModeType
	Cost        float64
}

// Key identifies a port inside a store.
type PortKey struct {
	Origin      Cell
	Destination Cell
	Mode        ModeType
}

func (p Port) Key() PortKey {
	return PortKey{Origin: p.Origin, Destination: p.Destination, Mode: p.Mode}
}

func (p Port) Validate() error {
	if p.Cost < 0 || math.IsNaN(p.Cost) || math.IsInf(p.Cost, 0) {
		return fmt.Errorf("port %s: invalid cost %v", p, p.Cost)
	}
	if p.Mode == ModeNone {
		return fmt.Errorf("port %s: missing mode type", p)
	}
	return nil
}

func (p Port) String() string {
	return fmt.Sprintf("port(%s => %s via %s, cost=%.3f)", p.Origin, p.Destination, p.Mode, p.Cost)
}
