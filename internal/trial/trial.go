// Package trial runs one domain-local best-first search.
package trial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/mode"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

var (
	ErrNoModes  = errors.New("trial needs at least one mode")
	ErrNoGoal   = errors.New("trial needs a goal")
	ErrNoOracle = errors.New("trial needs a terrain oracle")
)

type State uint8

const (
	Idle State = iota
	Running
	StoppedSuccessful
	StoppedFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StoppedSuccessful:
		return "stopped_successful"
	case StoppedFailed:
		return "stopped_failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s State) Terminal() bool { return s == StoppedSuccessful || s == StoppedFailed }

type FailReason string

const (
	ReasonNone              FailReason = ""
	ReasonUnreachable       FailReason = "unreachable"
	ReasonBudgetExhausted   FailReason = "budget_exhausted"
	ReasonCollaboratorFault FailReason = "collaborator_fault"
	ReasonInvalidInput      FailReason = "invalid_input"
)

// Budget bounds one trial. Zero fields are unbounded.
type Budget struct {
	MaxSteps    int
	MaxDuration time.Duration
}

// StepEvent describes one proposed edge during expansion.
type StepEvent struct {
	From     model.Cell
	Cell     model.Cell
	Mode     model.ModeType
	Accepted bool
}

type Params struct {
	Origin    model.Cell
	Goal      goal.Goal
	Modes     []mode.Mode
	Oracle    terrain.Oracle
	Flags     flags.Set
	Heuristic Heuristic
	Budget    Budget
	// OnStep is called for every edge considered. Optional.
	OnStep func(StepEvent)
	// Now is the clock for the duration budget. Defaults to time.Now.
	Now func() time.Time
}

type link struct {
	from model.Cell
	mode model.ModeType
}

// Trial is single-owner. Once terminal it is never mutated again, so readers on
// other goroutines may share it.
type Trial struct {
	origin   model.Cell
	goal     goal.Goal
	modes    model.ModeTypeSet
	state    State
	path     model.Path
	estimate float64
	reason   FailReason
	err      error
	cached   bool

	params Params
	est    estimator
	oracle *terrain.Memo
	open   frontier
	best   map[model.Cell]float64
	prev   map[model.Cell]link
	closed map[model.Cell]struct{}
	seq    uint64
	steps  int
	start  time.Time
}

// Approximate builds an idle trial whose cost is the heuristic estimate until
// it is stepped to completion.
func Approximate(p Params) (*Trial, error) {
	if len(p.Modes) == 0 {
		return nil, ErrNoModes
	}
	if p.Goal == nil {
		return nil, ErrNoGoal
	}
	if p.Oracle == nil {
		return nil, ErrNoOracle
	}
	if d := goal.Domain(p.Goal); d != "" && d != p.Origin.Domain {
		return nil, fmt.Errorf("goal in %s, origin in %s: %w", d, p.Origin.Domain, model.ErrCrossDomain)
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	est := newEstimator(p.Heuristic, p.Goal, p.Origin.Domain)
	return &Trial{
		origin:   p.Origin,
		goal:     p.Goal,
		modes:    mode.Types(p.Modes),
		state:    Idle,
		estimate: est.estimate(p.Origin),
		params:   p,
		est:      est,
	}, nil
}

// Successful is a trial already resolved to path, typically from the cache.
func Successful(g goal.Goal, modes model.ModeTypeSet, path model.Path) *Trial {
	return &Trial{
		origin:   path.Origin(),
		goal:     g,
		modes:    modes,
		state:    StoppedSuccessful,
		path:     path,
		estimate: path.Cost(),
		cached:   true,
	}
}

// Failed is a trial already known to be unreachable.
func Failed(origin model.Cell, g goal.Goal, modes model.ModeTypeSet, reason FailReason) *Trial {
	if reason == ReasonNone {
		reason = ReasonUnreachable
	}
	return &Trial{
		origin:   origin,
		goal:     g,
		modes:    modes,
		state:    StoppedFailed,
		path:     model.InvalidPath,
		estimate: math.Inf(1),
		reason:   reason,
		cached:   true,
	}
}

func (t *Trial) Origin() model.Cell       { return t.origin }
func (t *Trial) Goal() goal.Goal          { return t.goal }
func (t *Trial) Modes() model.ModeTypeSet { return t.modes }
func (t *Trial) State() State             { return t.state }
func (t *Trial) Path() model.Path         { return t.path }
func (t *Trial) Reason() FailReason       { return t.reason }
func (t *Trial) Err() error               { return t.err }
func (t *Trial) Steps() int               { return t.steps }
func (t *Trial) Done() bool               { return t.state.Terminal() }
func (t *Trial) Estimate() float64        { return t.estimate }

// Cached reports whether the trial was built already resolved.
func (t *Trial) Cached() bool { return t.cached }

// OracleQueries counts distinct cells this trial asked the oracle about.
func (t *Trial) OracleQueries() int {
	if t.oracle == nil {
		return 0
	}
	return t.oracle.Queries()
}

// Cost is the path cost once successful, +Inf once failed, and the estimate
// before that.
func (t *Trial) Cost() float64 {
	switch t.state {
	case StoppedSuccessful:
		return t.path.Cost()
	case StoppedFailed:
		return math.Inf(1)
	}
	return t.estimate
}

// Run steps the trial to a terminal state. It returns ctx.Err() if the context
// ends first, leaving the trial running.
func (t *Trial) Run(ctx context.Context) (State, error) {
	const chunk = 256
	for !t.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return t.state, err
		}
		t.Step(chunk)
	}
	return t.state, nil
}
