package trial

import (
	"fmt"
	"math"
	"strings"

	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

type Heuristic uint8

const (
	// Euclidean is the straight-line distance. Admissible for every mode set
	// because no move is cheaper than its displacement.
	Euclidean Heuristic = iota
	// Planar charges vertical displacement along 45 degree diagonals. It stays
	// admissible only while every mode costs at least model.PlanarLength.
	Planar
)

func (h Heuristic) String() string {
	switch h {
	case Euclidean:
		return "euclidean"
	case Planar:
		return "planar"
	default:
		return fmt.Sprintf("heuristic(%d)", uint8(h))
	}
}

func ParseHeuristic(s string) (Heuristic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean":
		return Euclidean, nil
	case "planar":
		return Planar, nil
	}
	return Euclidean, fmt.Errorf("unknown heuristic %q", s)
}

// planarStretch bounds PlanarLength/Euclidean over all directions, so a
// straight-line completion radius converts to a planar one.
var planarStretch = math.Sqrt(4 - 2*math.Sqrt2)

func (h Heuristic) distance(a, b model.Cell) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	dz := float64(b.Z - a.Z)
	if h == Planar {
		return model.PlanarLength(dx, dy, dz)
	}
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// estimator is the heuristic bound to one goal.
type estimator struct {
	h       Heuristic
	targets []model.Cell
	slack   float64
}

func newEstimator(h Heuristic, g goal.Goal, domain model.DomainID) estimator {
	var targets []model.Cell
	for _, t := range g.Targets() {
		if t.Domain == domain {
			targets = append(targets, t)
		}
	}
	slack := g.Radius()
	if h == Planar {
		slack *= planarStretch
	}
	return estimator{h: h, targets: targets, slack: slack}
}

func (e estimator) estimate(c model.Cell) float64 {
	if len(e.targets) == 0 {
		return 0
	}
	best := math.Inf(1)
	for _, t := range e.targets {
		if d := e.h.distance(c, t); d < best {
			best = d
		}
	}
	if best -= e.slack; best < 0 {
		return 0
	}
	return best
}
