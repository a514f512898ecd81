// Package goal defines what a path trial searches for.
package goal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

// Goal is the trial's termination test plus the spatial hints its heuristic
// measures against.
type Goal interface {
	Reached(c model.Cell, o terrain.Oracle, f flags.Set) (bool, error)
	// Targets are the cells the heuristic aims at. Nil means no spatial hint
	// and the trial degrades to uniform-cost search.
	Targets() []model.Cell
	// Radius is the straight-line slack around each target that still counts
	// as reached.
	Radius() float64
	// Key identifies the goal shape for caching. Empty means never cache.
	Key() string
}

// Destination is reached within CompletionDistance (squared) of Cell.
type Destination struct {
	Cell               model.Cell
	CompletionDistance float64
}

func At(c model.Cell) Destination { return Destination{Cell: c} }

func Near(c model.Cell, distanceSquared float64) Destination {
	if distanceSquared < 0 {
		distanceSquared = 0
	}
	return Destination{Cell: c, CompletionDistance: distanceSquared}
}

func (d Destination) Reached(c model.Cell, _ terrain.Oracle, _ flags.Set) (bool, error) {
	return c.DistanceSquared(d.Cell) <= d.CompletionDistance, nil
}

func (d Destination) Targets() []model.Cell { return []model.Cell{d.Cell} }

func (d Destination) Radius() float64 { return math.Sqrt(d.CompletionDistance) }

func (d Destination) Key() string {
	return fmt.Sprintf("dest:%s~%g", d.Cell, d.CompletionDistance)
}

// AnyOf is reached at any of its points.
type AnyOf struct {
	points []model.Cell
	set    map[model.Cell]struct{}
}

func NewAnyOf(points ...model.Cell) AnyOf {
	set := make(map[model.Cell]struct{}, len(points))
	uniq := make([]model.Cell, 0, len(points))
	for _, p := range points {
		if _, dup := set[p]; dup {
			continue
		}
		set[p] = struct{}{}
		uniq = append(uniq, p)
	}
	return AnyOf{points: uniq, set: set}
}

func (a AnyOf) Reached(c model.Cell, _ terrain.Oracle, _ flags.Set) (bool, error) {
	_, ok := a.set[c]
	return ok, nil
}

func (a AnyOf) Targets() []model.Cell {
	out := make([]model.Cell, len(a.points))
	copy(out, a.points)
	return out
}

func (a AnyOf) Radius() float64 { return 0 }

func (a AnyOf) Key() string {
	parts := make([]string, 0, len(a.points))
	for _, p := range a.points {
		parts = append(parts, p.String())
	}
	sort.Strings(parts)
	return "any:" + strings.Join(parts, ";")
}

// Func wraps an ad-hoc predicate. It has no key and is never cached.
type Func func(c model.Cell, o terrain.Oracle, f flags.Set) (bool, error)

func (fn Func) Reached(c model.Cell, o terrain.Oracle, f flags.Set) (bool, error) {
	return fn(c, o, f)
}

func (Func) Targets() []model.Cell { return nil }
func (Func) Radius() float64       { return 0 }
func (Func) Key() string           { return "" }

// Domain returns the single domain a goal's targets live in, or "" when the
// goal has no targets or spans several domains.
func Domain(g Goal) model.DomainID {
	ts := g.Targets()
	if len(ts) == 0 {
		return ""
	}
	d := ts[0].Domain
	for _, t := range ts[1:] {
		if t.Domain != d {
			return ""
		}
	}
	return d
}
