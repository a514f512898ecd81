package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/whimxiqal/journey-sub005/internal/cache"
	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/journey"
	"github.com/whimxiqal/journey-sub005/internal/mode"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/sched"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

const (
	over   = model.DomainID("overworld")
	nether = model.DomainID("nether")
)

func world(t *testing.T, domains ...model.DomainID) *terrain.World {
	t.Helper()
	w := terrain.NewWorld(nil)
	for _, d := range domains {
		if err := w.AddDomain(terrain.DomainSpec{
			ID:     d,
			Height: 16,
			Layers: []terrain.Layer{{Block: "BEDROCK", Thickness: 1}, {Block: "STONE", Thickness: 3}},
		}); err != nil {
			t.Fatalf("add domain %s: %v", d, err)
		}
	}
	return w
}

func walking(t *testing.T) []mode.Mode {
	t.Helper()
	ms, err := mode.ForTypes(model.NewModeTypeSet(model.ModeWalk, model.ModeJump))
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	return ms
}

// recorder counts events by kind.
type recorder struct {
	mu       sync.Mutex
	steps    int
	resolved []events.TrialResolved
	stopped  []events.SearchStopped
	found    int
}

func (r *recorder) sink() events.Sink {
	return events.Sink{
		StepEvaluatedFn: func(events.StepEvaluated) {
			r.mu.Lock()
			r.steps++
			r.mu.Unlock()
		},
		TrialResolvedFn: func(e events.TrialResolved) {
			r.mu.Lock()
			r.resolved = append(r.resolved, e)
			r.mu.Unlock()
		},
		SearchStoppedFn: func(e events.SearchStopped) {
			r.mu.Lock()
			r.stopped = append(r.stopped, e)
			r.mu.Unlock()
		},
		FoundSolutionFn: func(events.FoundSolution) {
			r.mu.Lock()
			r.found++
			r.mu.Unlock()
		},
	}
}

type reports struct {
	mu  sync.Mutex
	got []Record
}

func (r *reports) Report(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, rec)
	return nil
}

func start(t *testing.T, env Env, req Request) *Session {
	t.Helper()
	s, err := New(env, req)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestSingleLegSuccess(t *testing.T) {
	rec := &recorder{}
	s := start(t, Env{Oracle: world(t, over), Events: rec.sink()}, Request{
		Caller: "alice",
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 5, 4, 0)),
		Modes:  walking(t),
	})
	if st := s.Search(0); st != StoppedSuccessful {
		t.Fatalf("state=%s reason=%s err=%v", st, s.Reason(), s.Err())
	}
	it := s.Itinerary()
	if it == nil || it.Len() != 1 || it.Cost() != 5 {
		t.Fatalf("itinerary: %v", it)
	}
	if rec.found != 1 || len(rec.stopped) != 1 || rec.stopped[0].State != "stopped_successful" {
		t.Fatalf("events: found=%d stopped=%+v", rec.found, rec.stopped)
	}
	if rec.steps == 0 {
		t.Fatal("no step events")
	}
}

func TestCrossDomainThroughPort(t *testing.T) {
	w := world(t, over, nether)
	portal := model.Port{
		Origin:      model.C(over, 3, 4, 0),
		Destination: model.C(nether, 10, 4, 0),
		Mode:        model.ModeNetherPortal,
		Cost:        4,
	}
	store, err := ports.NewMemory(portal)
	if err != nil {
		t.Fatal(err)
	}
	s := start(t, Env{Oracle: w, Ports: store}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(nether, 14, 4, 0)),
		Modes:  walking(t),
	})
	if st := s.Search(0); st != StoppedSuccessful {
		t.Fatalf("state=%s reason=%s err=%v", st, s.Reason(), s.Err())
	}
	it := s.Itinerary()
	if it.Len() != 3 {
		t.Fatalf("legs: %v", it)
	}
	if it.Cost() != 3+4+4 {
		t.Fatalf("cost: %v", it.Cost())
	}
	if got := it.Ports(); len(got) != 1 || got[0].Key() != portal.Key() {
		t.Fatalf("ports: %v", got)
	}
	if it.Destination() != model.C(nether, 14, 4, 0) {
		t.Fatalf("destination: %v", it.Destination())
	}
}

func TestPortsAtLegEnds(t *testing.T) {
	end := model.DomainID("end")
	w := world(t, over, nether, end)
	portal := model.Port{Origin: model.C(over, 3, 4, 0), Destination: model.C(nether, 10, 4, 0), Mode: model.ModeNetherPortal, Cost: 4}
	gate := model.Port{Origin: model.C(nether, 10, 4, 0), Destination: model.C(end, 0, 4, 0), Mode: model.ModeTeleport, Cost: 2}
	store, err := ports.NewMemory(portal, gate)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		origin   model.Cell
		target   model.Cell
		cost     float64
		pathLens []int
	}{
		{"origin is a port origin", model.C(over, 3, 4, 0), model.C(nether, 7, 4, 0), 4 + 3, []int{1, 4}},
		{"target is a port destination", model.C(over, 0, 4, 0), model.C(nether, 10, 4, 0), 3 + 4, []int{4, 1}},
		{"port lands on the next port", model.C(over, 0, 4, 0), model.C(end, 5, 4, 0), 3 + 4 + 2 + 5, []int{4, 1, 6}},
		{"single port between its own ends", model.C(over, 3, 4, 0), model.C(nether, 10, 4, 0), 4, []int{1, 1}},
	}
	for _, tc := range cases {
		s := start(t, Env{Oracle: w, Ports: store}, Request{
			Origin: tc.origin,
			Goal:   goal.At(tc.target),
			Modes:  walking(t),
		})
		if st := s.Search(0); st != StoppedSuccessful {
			t.Fatalf("%s: state=%s reason=%s err=%v", tc.name, st, s.Reason(), s.Err())
		}
		it := s.Itinerary()
		if it.Cost() != tc.cost || it.Origin() != tc.origin || it.Destination() != tc.target {
			t.Fatalf("%s: %v", tc.name, it)
		}
		paths := it.Paths()
		if len(paths) != len(tc.pathLens) || len(it.Ports()) != len(paths)-1 {
			t.Fatalf("%s: paths=%d ports=%d", tc.name, len(paths), len(it.Ports()))
		}
		for i, p := range paths {
			if p.Len() != tc.pathLens[i] {
				t.Fatalf("%s: path %d has %d steps, want %d", tc.name, i, p.Len(), tc.pathLens[i])
			}
		}
	}
}

func TestAnyOfAcrossDomains(t *testing.T) {
	end := model.DomainID("end")
	w := world(t, over, nether, end)
	portal := model.Port{Origin: model.C(over, 3, 4, 0), Destination: model.C(nether, 10, 4, 0), Mode: model.ModeNetherPortal, Cost: 4}
	store, err := ports.NewMemory(portal)
	if err != nil {
		t.Fatal(err)
	}
	env := Env{Oracle: w, Ports: store, Settings: Settings{Budget: trial.Budget{MaxSteps: 5000}}}

	// No target in the origin domain: the portal leads to the reachable one.
	s := start(t, env, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.NewAnyOf(model.C(nether, 12, 4, 0), model.C(end, 0, 4, 0)),
		Modes:  walking(t),
	})
	if st := s.Search(0); st != StoppedSuccessful {
		t.Fatalf("state=%s reason=%s err=%v", st, s.Reason(), s.Err())
	}
	if it := s.Itinerary(); it.Destination() != model.C(nether, 12, 4, 0) || it.Cost() != 3+4+2 || len(it.Ports()) != 1 {
		t.Fatalf("itinerary: %v", it)
	}

	// A near local target beats the far side of the portal.
	s = start(t, env, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.NewAnyOf(model.C(nether, 12, 4, 0), model.C(over, 0, 4, 2)),
		Modes:  walking(t),
	})
	if st := s.Search(0); st != StoppedSuccessful {
		t.Fatalf("state=%s reason=%s err=%v", st, s.Reason(), s.Err())
	}
	if it := s.Itinerary(); it.Destination() != model.C(over, 0, 4, 2) || it.Cost() != 2 || len(it.Ports()) != 0 {
		t.Fatalf("itinerary: %v", it)
	}
}

func TestCrossDomainWithoutPortsIsUnreachable(t *testing.T) {
	store, _ := ports.NewMemory()
	s := start(t, Env{Oracle: world(t, over, nether), Ports: store}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(nether, 1, 4, 0)),
		Modes:  walking(t),
	})
	if st := s.Search(0); st != StoppedFailed || s.Reason() != trial.ReasonUnreachable {
		t.Fatalf("state=%s reason=%s", st, s.Reason())
	}
	if s.Itinerary() != nil {
		t.Fatal("failed session exposes an itinerary")
	}
}

func TestSecondSearchHitsCache(t *testing.T) {
	w := world(t, over)
	c := cache.NewMemory()
	rep := &reports{}
	req := Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 8, 4, 2)),
		Modes:  walking(t),
	}

	first := &recorder{}
	s1 := start(t, Env{Oracle: w, Cache: c, Events: first.sink(), Reporter: rep}, req)
	if st := s1.Search(0); st != StoppedSuccessful {
		t.Fatalf("first: %s", st)
	}
	if first.steps == 0 || first.resolved[0].Cached {
		t.Fatalf("first search: steps=%d resolved=%+v", first.steps, first.resolved)
	}

	second := &recorder{}
	s2 := start(t, Env{Oracle: w, Cache: c, Events: second.sink(), Reporter: rep}, req)
	if st := s2.Search(1); st != StoppedSuccessful {
		t.Fatalf("second: %s", st)
	}
	if second.steps != 0 {
		t.Fatalf("cached search evaluated %d steps", second.steps)
	}
	if !second.resolved[0].Cached {
		t.Fatalf("second trial not cached: %+v", second.resolved[0])
	}
	if _, _, steps := s2.Progress(); steps != 0 {
		t.Fatalf("cached leg consumed %d steps", steps)
	}
	if s1.Itinerary().Cost() != s2.Itinerary().Cost() {
		t.Fatalf("costs differ: %v vs %v", s1.Itinerary().Cost(), s2.Itinerary().Cost())
	}
	if c.Len() != 1 {
		t.Fatalf("cache entries: %d", c.Len())
	}
	if len(rep.got) != 1 || rep.got[0].Path.Cost() != s1.Itinerary().Cost() {
		t.Fatalf("reports: %+v", rep.got)
	}
}

func TestUnreachableIsCachedButBudgetIsNot(t *testing.T) {
	w := world(t, over)
	// Seal the goal inside glass.
	if err := w.Fill(model.C(over, 9, 4, -1), model.C(over, 11, 6, 1), "GLASS"); err != nil {
		t.Fatal(err)
	}
	if err := w.SetBlock(model.C(over, 10, 4, 0), "AIR"); err != nil {
		t.Fatal(err)
	}
	if err := w.SetBlock(model.C(over, 10, 5, 0), "AIR"); err != nil {
		t.Fatal(err)
	}
	c := cache.NewMemory()
	req := Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 10, 4, 0)),
		Modes:  walking(t),
	}

	tight := start(t, Env{Oracle: w, Cache: c, Settings: Settings{Budget: trial.Budget{MaxSteps: 5}}}, req)
	if st := tight.Search(0); st != StoppedFailed || tight.Reason() != trial.ReasonBudgetExhausted {
		t.Fatalf("budget: state=%s reason=%s", st, tight.Reason())
	}
	if c.Len() != 0 {
		t.Fatal("budget failure was cached")
	}

	// A small pen keeps the unreachable search finite.
	if err := w.Fill(model.C(over, -2, 4, -2), model.C(over, 2, 5, 2), "GLASS"); err != nil {
		t.Fatal(err)
	}
	if err := w.Fill(model.C(over, -1, 4, -1), model.C(over, 1, 5, 1), "AIR"); err != nil {
		t.Fatal(err)
	}
	full := start(t, Env{Oracle: w, Cache: c}, req)
	if st := full.Search(0); st != StoppedFailed || full.Reason() != trial.ReasonUnreachable {
		t.Fatalf("unreachable: state=%s reason=%s", st, full.Reason())
	}
	if c.Len() != 1 {
		t.Fatalf("unreachable not cached: %d", c.Len())
	}
	again := &recorder{}
	cached := start(t, Env{Oracle: w, Cache: c, Events: again.sink()}, req)
	if st := cached.Search(0); st != StoppedFailed || cached.Reason() != trial.ReasonUnreachable {
		t.Fatalf("cached unreachable: state=%s reason=%s", st, cached.Reason())
	}
	if !again.resolved[0].Cached {
		t.Fatal("unreachable marker not served from cache")
	}
}

func TestCancelWhileRunningLeavesCacheUntouched(t *testing.T) {
	c := cache.NewMemory()
	s := start(t, Env{Oracle: world(t, over), Cache: c}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 30, 4, 0)),
		Modes:  walking(t),
	})
	if st := s.Search(3); st != Running {
		t.Fatalf("after 3 steps: %s", st)
	}
	s.Cancel()
	if st := s.State(); st != Running {
		t.Fatalf("cancel took effect outside a step boundary: %s", st)
	}
	if st := s.Search(10); st != Cancelled {
		t.Fatalf("after cancel: %s", st)
	}
	if c.Len() != 0 {
		t.Fatal("cancelled search wrote the cache")
	}
	if s.Search(10) != Cancelled {
		t.Fatal("terminal state changed")
	}
}

func TestCancelIdle(t *testing.T) {
	rec := &recorder{}
	s := start(t, Env{Oracle: world(t, over), Events: rec.sink()}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 3, 4, 0)),
		Modes:  walking(t),
	})
	s.Cancel()
	if s.State() != Cancelled || len(rec.stopped) != 1 {
		t.Fatalf("state=%s stopped=%d", s.State(), len(rec.stopped))
	}
	if s.Search(0) != Cancelled {
		t.Fatal("cancelled session ran")
	}
}

func TestInvalidRequests(t *testing.T) {
	w := world(t, over)
	base := Request{Origin: model.C(over, 0, 4, 0), Goal: goal.At(model.C(over, 1, 4, 0)), Modes: walking(t)}

	noModes := base
	noModes.Modes = nil
	if _, err := New(Env{Oracle: w}, noModes); !errors.Is(err, trial.ErrNoModes) {
		t.Fatalf("no modes: %v", err)
	}
	noGoal := base
	noGoal.Goal = nil
	if _, err := New(Env{Oracle: w}, noGoal); !errors.Is(err, trial.ErrNoGoal) {
		t.Fatalf("no goal: %v", err)
	}
	if _, err := New(Env{}, base); !errors.Is(err, ErrNoOracle) {
		t.Fatalf("no oracle: %v", err)
	}
}

func TestManagerSupersedesPerCaller(t *testing.T) {
	m := NewManager(Env{Oracle: world(t, over)})
	req := Request{
		Caller: "alice",
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 4, 4, 0)),
		Modes:  walking(t),
	}
	first, err := m.Start(req)
	if err != nil {
		t.Fatal(err)
	}
	first.Search(1)
	second, err := m.Start(req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Search(1) != Cancelled {
		t.Fatalf("superseded session: %s", first.State())
	}
	if got, _ := m.Get("alice"); got != second {
		t.Fatal("manager kept the old session")
	}

	other := req
	other.Caller = "bob"
	if _, err := m.Start(other); err != nil {
		t.Fatal(err)
	}
	if second.State() != Idle {
		t.Fatalf("another caller disturbed alice: %s", second.State())
	}
	if n := len(m.Sessions()); n != 2 {
		t.Fatalf("sessions: %d", n)
	}

	second.Search(0)
	j1 := journey.New(second.Itinerary(), journey.Options{})
	j1.Run()
	m.SetJourney("alice", j1)
	j2 := journey.New(second.Itinerary(), journey.Options{})
	j2.Run()
	m.SetJourney("alice", j2)
	if j1.State() != journey.StoppedIncomplete {
		t.Fatalf("replaced journey: %s", j1.State())
	}
	m.Forget("alice")
	if _, ok := m.Get("alice"); ok {
		t.Fatal("forget kept the session")
	}
	if j2.State() != journey.StoppedIncomplete {
		t.Fatalf("forgotten journey: %s", j2.State())
	}
}

func TestDriveOnScheduler(t *testing.T) {
	s := start(t, Env{Oracle: world(t, over)}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 12, 4, 3)),
		Modes:  walking(t),
	})
	loop := sched.NewLoop(20, nil)
	var done int
	Drive(loop, s, 4, false, func(*Session) { done++ })

	loop.Advance()
	if s.State() != Running {
		t.Fatalf("after one tick: %s", s.State())
	}
	if _, _, steps := s.Progress(); steps != 4 {
		t.Fatalf("steps per tick: %d", steps)
	}
	for i := 0; i < 1000 && !s.Done(); i++ {
		loop.Advance()
	}
	if s.State() != StoppedSuccessful {
		t.Fatalf("state: %s", s.State())
	}
	loop.AdvanceN(3)
	if done != 1 || loop.Pending() != 0 {
		t.Fatalf("done=%d pending=%d", done, loop.Pending())
	}
}

func TestRunCancelsOnContext(t *testing.T) {
	s := start(t, Env{Oracle: world(t, over)}, Request{
		Origin: model.C(over, 0, 4, 0),
		Goal:   goal.At(model.C(over, 40, 4, 0)),
		Modes:  walking(t),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if st := s.Run(ctx, 1); st != Cancelled {
		t.Fatalf("state: %s", st)
	}
}
