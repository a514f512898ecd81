// Package itinerary holds a resolved multi-domain route: domain-local paths
// joined by ports.
package itinerary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

var (
	ErrDisconnected = errors.New("itinerary legs do not connect")
	ErrShape        = errors.New("itinerary needs one more path than ports")
)

// Itinerary is immutable once built.
type Itinerary struct {
	seq  *Alternating[model.Path, model.Port]
	cost float64
}

// New checks that every port starts where the previous path ends and lands
// where the next path starts.
func New(paths []model.Path, ports []model.Port) (*Itinerary, error) {
	if len(paths) == 0 || len(paths) != len(ports)+1 {
		return nil, fmt.Errorf("%w: %d paths, %d ports", ErrShape, len(paths), len(ports))
	}
	for i, p := range paths {
		if !p.Valid() {
			return nil, fmt.Errorf("leg %d: %w", i, model.ErrEmptyPath)
		}
	}
	seq := NewAlternating[model.Path, model.Port](paths[0])
	cost := paths[0].Cost()
	for i, port := range ports {
		if port.Origin != paths[i].Destination() {
			return nil, fmt.Errorf("%w: %s starts at %s, previous path ends at %s", ErrDisconnected, port, port.Origin, paths[i].Destination())
		}
		if port.Destination != paths[i+1].Origin() {
			return nil, fmt.Errorf("%w: %s lands at %s, next path starts at %s", ErrDisconnected, port, port.Destination, paths[i+1].Origin())
		}
		seq.Append(port, paths[i+1])
		cost += port.Cost + paths[i+1].Cost()
	}
	return &Itinerary{seq: seq, cost: cost}, nil
}

// Single wraps one path.
func Single(p model.Path) (*Itinerary, error) { return New([]model.Path{p}, nil) }

// Cost is the sum of every path and port cost.
func (it *Itinerary) Cost() float64 { return it.cost }

func (it *Itinerary) Paths() []model.Path { return it.seq.Majors() }
func (it *Itinerary) Ports() []model.Port { return it.seq.Minors() }

func (it *Itinerary) Origin() model.Cell      { return it.seq.First().Origin() }
func (it *Itinerary) Destination() model.Cell { return it.seq.Last().Destination() }

// Len counts legs, paths and ports alike.
func (it *Itinerary) Len() int { return it.seq.Len() }

func (it *Itinerary) Leg(i int) Leg {
	path, port, isPath := it.seq.At(i)
	if isPath {
		return Leg{Index: i, Path: path}
	}
	return Leg{Index: i, Port: port, IsPort: true}
}

func (it *Itinerary) Legs() []Leg {
	out := make([]Leg, it.Len())
	for i := range out {
		out[i] = it.Leg(i)
	}
	return out
}

func (it *Itinerary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "itinerary(cost=%.3f:", it.cost)
	for _, l := range it.Legs() {
		b.WriteString(" ")
		b.WriteString(l.String())
	}
	b.WriteString(")")
	return b.String()
}

// Leg is one element of an itinerary: a path, or the port between two paths.
type Leg struct {
	Index  int
	IsPort bool
	Path   model.Path
	Port   model.Port
}

func (l Leg) Cost() float64 {
	if l.IsPort {
		return l.Port.Cost
	}
	return l.Path.Cost()
}

// Start is where the agent should be when the leg begins.
func (l Leg) Start() model.Cell {
	if l.IsPort {
		return l.Port.Origin
	}
	return l.Path.Origin()
}

// End is the cell that completes the leg.
func (l Leg) End() model.Cell {
	if l.IsPort {
		return l.Port.Destination
	}
	return l.Path.Destination()
}

func (l Leg) String() string {
	if l.IsPort {
		return l.Port.String()
	}
	return l.Path.String()
}

// Traversal is a forward-only cursor over an itinerary's legs.
type Traversal struct {
	it  *Itinerary
	cur *Cursor[model.Path, model.Port]
}

func (it *Itinerary) Traverse() *Traversal {
	return &Traversal{it: it, cur: it.seq.Cursor()}
}

func (t *Traversal) Itinerary() *Itinerary { return t.it }
func (t *Traversal) HasNext() bool         { return t.cur.HasNext() }
func (t *Traversal) Get() Leg              { return t.it.Leg(t.cur.Index()) }

// Next advances to and returns the following leg.
func (t *Traversal) Next() Leg {
	t.cur.Next()
	return t.Get()
}

// Restart returns a fresh cursor at the first leg of the same itinerary.
func (t *Traversal) Restart() *Traversal { return t.it.Traverse() }
