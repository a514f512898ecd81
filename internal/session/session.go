// Package session turns a search request into an itinerary: it plans the
// ports to take, runs one cache-first trial per leg, and can be cancelled
// between steps.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/whimxiqal/journey-sub005/internal/cache"
	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/itinerary"
	"github.com/whimxiqal/journey-sub005/internal/mode"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

var ErrNoOracle = errors.New("session needs a terrain oracle")

type State uint32

const (
	Idle State = iota
	Running
	Cancelled
	StoppedSuccessful
	StoppedFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case StoppedSuccessful:
		return "stopped_successful"
	case StoppedFailed:
		return "stopped_failed"
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

func (s State) Terminal() bool { return s >= Cancelled }

type Request struct {
	Caller string
	Origin model.Cell
	Goal   goal.Goal
	Modes  []mode.Mode
	Flags  flags.Set
	// PortModes limits which ports the router may use. Empty allows all.
	PortModes model.ModeTypeSet
	// Heuristic overrides the environment default when set.
	Heuristic *trial.Heuristic
}

// Session is driven by one goroutine at a time through Search. State, Cancel
// and the result accessors are safe from any goroutine.
type Session struct {
	id      string
	req     Request
	env     Env
	modes   model.ModeTypeSet
	created time.Time

	state     atomic.Uint32
	cancelled atomic.Bool

	mu       sync.Mutex
	legs     []legPlan
	leg      int
	current  *trial.Trial
	legStart time.Time
	paths    []model.Path
	ports    []model.Port
	steps    int
	started  time.Time

	// Written before the terminal state is stored.
	result  *itinerary.Itinerary
	reason  trial.FailReason
	err     error
	elapsed time.Duration
}

// New validates the request. Invalid input fails here instead of becoming a
// search outcome.
func New(env Env, req Request) (*Session, error) {
	if len(req.Modes) == 0 {
		return nil, trial.ErrNoModes
	}
	if req.Goal == nil {
		return nil, trial.ErrNoGoal
	}
	if env.Oracle == nil {
		return nil, ErrNoOracle
	}
	env = env.withDefaults()
	return &Session{
		id:      uuid.NewString(),
		req:     req,
		env:     env,
		modes:   mode.Types(req.Modes),
		created: env.Now(),
	}, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Caller() string           { return s.req.Caller }
func (s *Session) Origin() model.Cell       { return s.req.Origin }
func (s *Session) Goal() goal.Goal          { return s.req.Goal }
func (s *Session) Modes() model.ModeTypeSet { return s.modes }
func (s *Session) Created() time.Time       { return s.created }
func (s *Session) State() State             { return State(s.state.Load()) }
func (s *Session) Done() bool               { return s.State().Terminal() }
func (s *Session) CancelRequested() bool    { return s.cancelled.Load() }

func (s *Session) heuristic() trial.Heuristic {
	if s.req.Heuristic != nil {
		return *s.req.Heuristic
	}
	return s.env.Settings.Heuristic
}

// Itinerary is nil unless the session stopped successfully.
func (s *Session) Itinerary() *itinerary.Itinerary {
	if s.State() != StoppedSuccessful {
		return nil
	}
	return s.result
}

// Reason is set once the session stopped failed.
func (s *Session) Reason() trial.FailReason {
	if s.State() != StoppedFailed {
		return trial.ReasonNone
	}
	return s.reason
}

func (s *Session) Err() error {
	if !s.Done() {
		return nil
	}
	return s.err
}

// Elapsed is the wall time from the first Search call to the terminal state.
func (s *Session) Elapsed() time.Duration {
	if !s.Done() {
		return 0
	}
	return s.elapsed
}

// Cancel requests cancellation. An idle session is cancelled at once; a
// running one stops at its next step boundary.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	if s.state.CompareAndSwap(uint32(Idle), uint32(Cancelled)) {
		s.env.Events.SearchStopped(events.SearchStopped{
			SessionID: s.id,
			Caller:    s.req.Caller,
			State:     Cancelled.String(),
		})
	}
}

// Search performs up to n search steps and returns the state reached. Cached
// legs cost no steps. n <= 0 runs to a terminal state.
func (s *Session) Search(n int) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if s.State() == Idle {
		if !s.state.CompareAndSwap(uint32(Idle), uint32(Running)) {
			return s.State()
		}
		s.begin(ctx)
	}
	unbounded := n <= 0
	for s.State() == Running {
		if s.cancelled.Load() {
			s.stop(Cancelled, trial.ReasonNone, nil)
			break
		}
		if s.current == nil {
			s.startLeg(ctx)
			continue
		}
		if s.current.Done() {
			s.finishLeg(ctx)
			continue
		}
		if !unbounded && n <= 0 {
			break
		}
		s.current.Step(1)
		s.steps++
		n--
	}
	return s.State()
}

// Run searches until terminal or until ctx ends, which cancels the session.
func (s *Session) Run(ctx context.Context, chunk int) State {
	if chunk <= 0 {
		chunk = 256
	}
	for !s.Done() {
		if ctx.Err() != nil {
			s.Cancel()
		}
		s.Search(chunk)
	}
	return s.State()
}

func (s *Session) begin(ctx context.Context) {
	s.started = s.env.Now()
	s.env.Events.SearchStarted(events.SearchStarted{
		SessionID: s.id,
		Caller:    s.req.Caller,
		Origin:    s.req.Origin,
		Goal:      s.req.Goal.Key(),
		Modes:     s.modes,
	})
	legs, ok, err := s.plan(ctx)
	switch {
	case err != nil:
		s.stop(StoppedFailed, trial.ReasonCollaboratorFault, err)
	case !ok:
		s.stop(StoppedFailed, trial.ReasonUnreachable, nil)
	default:
		s.legs = legs
		s.env.Logger.Printf("session %s caller=%q planned %d leg(s)", s.id, s.req.Caller, len(legs))
	}
}

func (s *Session) trialParams(origin model.Cell, g goal.Goal) trial.Params {
	return trial.Params{
		Origin:    origin,
		Goal:      g,
		Modes:     s.req.Modes,
		Oracle:    s.env.Oracle,
		Flags:     s.req.Flags,
		Heuristic: s.heuristic(),
		Budget:    s.env.Settings.Budget,
		Now:       s.env.Now,
	}
}

func (s *Session) cacheKey(lp legPlan) (cache.Key, bool) {
	k := lp.goal.Key()
	if k == "" || s.env.Cache == nil {
		return cache.Key{}, false
	}
	return cache.Key{Origin: lp.origin, Goal: k, Modes: s.modes}, true
}

func (s *Session) startLeg(ctx context.Context) {
	lp := s.legs[s.leg]
	s.legStart = s.env.Now()
	if key, ok := s.cacheKey(lp); ok {
		e, hit, err := s.env.Cache.Lookup(ctx, key)
		if err != nil {
			s.env.Logger.Printf("session %s: cache lookup %s: %v", s.id, key, err)
		}
		if hit {
			if e.Reachable {
				s.current = trial.Successful(lp.goal, s.modes, e.Path)
			} else {
				s.current = trial.Failed(lp.origin, lp.goal, s.modes, trial.ReasonUnreachable)
			}
			return
		}
	}
	params := s.trialParams(lp.origin, lp.goal)
	if s.env.Events.WantsSteps() {
		leg := s.leg
		params.OnStep = func(e trial.StepEvent) {
			s.env.Events.StepEvaluated(events.StepEvaluated{
				SessionID: s.id,
				Leg:       leg,
				From:      e.From,
				Cell:      e.Cell,
				Mode:      e.Mode,
				Accepted:  e.Accepted,
			})
		}
	}
	t, err := trial.Approximate(params)
	if err != nil {
		s.stop(StoppedFailed, trial.ReasonInvalidInput, err)
		return
	}
	s.current = t
}

func (s *Session) finishLeg(ctx context.Context) {
	t := s.current
	lp := s.legs[s.leg]
	elapsed := s.env.Now().Sub(s.legStart)

	if !t.Cached() {
		s.remember(ctx, lp, t, elapsed)
	}
	s.env.Events.TrialResolved(events.TrialResolved{
		SessionID: s.id,
		Leg:       s.leg,
		Origin:    lp.origin,
		Goal:      lp.goal.Key(),
		Modes:     s.modes,
		Cached:    t.Cached(),
		Success:   t.State() == trial.StoppedSuccessful,
		Reason:    string(t.Reason()),
		Cost:      t.Cost(),
		Steps:     t.Steps(),
		Elapsed:   elapsed,
	})

	if t.State() != trial.StoppedSuccessful {
		s.stop(StoppedFailed, t.Reason(), t.Err())
		return
	}
	s.paths = append(s.paths, t.Path())
	if lp.port != nil {
		s.ports = append(s.ports, *lp.port)
	}
	s.current = nil
	s.leg++
	if s.leg < len(s.legs) {
		return
	}
	it, err := itinerary.New(s.paths, s.ports)
	if err != nil {
		s.stop(StoppedFailed, trial.ReasonInvalidInput, err)
		return
	}
	s.result = it
	s.env.Events.FoundSolution(events.FoundSolution{SessionID: s.id, Caller: s.req.Caller, Itinerary: it})
	s.stop(StoppedSuccessful, trial.ReasonNone, nil)
}

// remember writes a searched leg's outcome to the cache and the reporter.
// Budget and collaborator failures are not facts about the terrain and are
// not cached.
func (s *Session) remember(ctx context.Context, lp legPlan, t *trial.Trial, elapsed time.Duration) {
	key, cacheable := s.cacheKey(lp)
	switch {
	case t.State() == trial.StoppedSuccessful:
		if cacheable {
			if _, err := s.env.Cache.Insert(ctx, key, cache.Hit(t.Path())); err != nil {
				s.env.Logger.Printf("session %s: cache insert %s: %v", s.id, key, err)
			}
		}
		if s.env.Reporter != nil {
			err := s.env.Reporter.Report(ctx, Record{
				SessionID: s.id,
				Caller:    s.req.Caller,
				Path:      t.Path(),
				Modes:     s.modes,
				Steps:     t.Steps(),
				Elapsed:   elapsed,
			})
			if err != nil {
				s.env.Logger.Printf("session %s: report: %v", s.id, err)
			}
		}
	case t.Reason() == trial.ReasonUnreachable && cacheable:
		if _, err := s.env.Cache.Insert(ctx, key, cache.Unreachable()); err != nil {
			s.env.Logger.Printf("session %s: cache insert %s: %v", s.id, key, err)
		}
	}
}

func (s *Session) stop(state State, reason trial.FailReason, err error) {
	s.current = nil
	s.reason = reason
	s.err = err
	if !s.started.IsZero() {
		s.elapsed = s.env.Now().Sub(s.started)
	}
	s.state.Store(uint32(state))
	if err != nil {
		s.env.Logger.Printf("session %s caller=%q stopped %s (%s): %v", s.id, s.req.Caller, state, reason, err)
	}
	s.env.Events.SearchStopped(events.SearchStopped{
		SessionID: s.id,
		Caller:    s.req.Caller,
		State:     state.String(),
		Reason:    string(reason),
		Steps:     s.steps,
		Elapsed:   s.elapsed,
	})
}

// Progress reports how many legs have resolved out of how many were planned.
func (s *Session) Progress() (done, total int, steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leg, len(s.legs), s.steps
}
