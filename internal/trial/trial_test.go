package trial

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/mode"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

const dom = model.DomainID("overworld")

func flat(t *testing.T) *terrain.World {
	t.Helper()
	w := terrain.NewWorld(nil)
	if err := w.AddDomain(terrain.DomainSpec{
		ID:     dom,
		Height: 16,
		Layers: []terrain.Layer{{Block: "BEDROCK", Thickness: 1}, {Block: "STONE", Thickness: 3}},
	}); err != nil {
		t.Fatalf("add domain: %v", err)
	}
	return w
}

func modes(t *testing.T, types ...model.ModeType) []mode.Mode {
	t.Helper()
	ms, err := mode.ForTypes(model.NewModeTypeSet(types...))
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	return ms
}

func run(t *testing.T, p Params) *Trial {
	t.Helper()
	tr, err := Approximate(p)
	if err != nil {
		t.Fatalf("approximate: %v", err)
	}
	if _, err := tr.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return tr
}

func TestStraightWalk(t *testing.T) {
	w := flat(t)
	for _, h := range []Heuristic{Euclidean, Planar} {
		tr := run(t, Params{
			Origin:    model.C(dom, 0, 4, 0),
			Goal:      goal.At(model.C(dom, 5, 4, 0)),
			Modes:     modes(t, model.ModeWalk),
			Oracle:    w,
			Heuristic: h,
		})
		if tr.State() != StoppedSuccessful {
			t.Fatalf("%s: state=%s reason=%s", h, tr.State(), tr.Reason())
		}
		if tr.Cost() != 5 || tr.Path().Len() != 6 {
			t.Fatalf("%s: cost=%v len=%d", h, tr.Cost(), tr.Path().Len())
		}
		if tr.Path().Destination() != model.C(dom, 5, 4, 0) || tr.Path().Origin() != model.C(dom, 0, 4, 0) {
			t.Fatalf("%s: unexpected endpoints %v", h, tr.Path())
		}
	}
}

func TestHeuristicsAgreeOnCostOverObstacles(t *testing.T) {
	w := flat(t)
	if err := w.Fill(model.C(dom, 3, 4, -4), model.C(dom, 3, 5, 4), "GLASS"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := w.SetBlock(model.C(dom, 3, 5, 0), "AIR"); err != nil {
		t.Fatalf("set: %v", err)
	}
	ms := modes(t, model.ModeWalk, model.ModeJump)
	p := Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 6, 4, 0)),
		Modes:  ms,
		Oracle: w,
	}
	euclid := run(t, p)
	p.Heuristic = Planar
	planar := run(t, p)
	if euclid.State() != StoppedSuccessful || planar.State() != StoppedSuccessful {
		t.Fatalf("states: %s %s", euclid.State(), planar.State())
	}
	if math.Abs(euclid.Cost()-planar.Cost()) > 1e-9 {
		t.Fatalf("costs differ: euclidean=%v planar=%v", euclid.Cost(), planar.Cost())
	}
	if ok, err := mode.PathValid(planar.Path(), ms, w, flags.Set{}); err != nil || !ok {
		t.Fatalf("path not valid under its modes: ok=%v err=%v", ok, err)
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	w := flat(t)
	p := Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 4, 4, 4)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
	}
	a := run(t, p)
	b := run(t, p)
	if a.Cost() != b.Cost() || !reflect.DeepEqual(a.Path().Steps(), b.Path().Steps()) {
		t.Fatalf("runs differ:\n%v\n%v", a.Path(), b.Path())
	}
}

func TestOriginAlreadySatisfiesGoal(t *testing.T) {
	w := flat(t)
	origin := model.C(dom, 2, 4, 2)
	tr := run(t, Params{Origin: origin, Goal: goal.At(origin), Modes: modes(t, model.ModeWalk), Oracle: w})
	if tr.State() != StoppedSuccessful || tr.Path().Len() != 1 || tr.Cost() != 0 || tr.Steps() != 0 {
		t.Fatalf("state=%s len=%d cost=%v steps=%d", tr.State(), tr.Path().Len(), tr.Cost(), tr.Steps())
	}
}

func TestFrontierExhaustedIsUnreachable(t *testing.T) {
	w := flat(t)
	if err := w.Fill(model.C(dom, -2, 4, -2), model.C(dom, 2, 5, 2), "GLASS"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := w.Fill(model.C(dom, -1, 4, -1), model.C(dom, 1, 5, 1), "AIR"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	tr := run(t, Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 10, 4, 0)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
	})
	if tr.State() != StoppedFailed || tr.Reason() != ReasonUnreachable {
		t.Fatalf("state=%s reason=%s", tr.State(), tr.Reason())
	}
	if !math.IsInf(tr.Cost(), 1) || tr.Path().Valid() {
		t.Fatalf("failed trial must have infinite cost and invalid path")
	}
	if tr.Steps() != 9 {
		t.Fatalf("expanded %d cells want the 9 inside the pen", tr.Steps())
	}
}

func TestStepBudget(t *testing.T) {
	w := flat(t)
	tr, err := Approximate(Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 1000, 4, 0)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
		Budget: Budget{MaxSteps: 40},
	})
	if err != nil {
		t.Fatalf("approximate: %v", err)
	}
	if tr.Cost() != 1000 {
		t.Fatalf("approximate estimate=%v want 1000", tr.Cost())
	}
	if s := tr.Step(10); s != Running {
		t.Fatalf("after 10 steps state=%s", s)
	}
	if tr.Steps() != 10 {
		t.Fatalf("steps=%d want 10", tr.Steps())
	}
	tr.Step(1000)
	if tr.State() != StoppedFailed || tr.Reason() != ReasonBudgetExhausted || tr.Steps() != 40 {
		t.Fatalf("state=%s reason=%s steps=%d", tr.State(), tr.Reason(), tr.Steps())
	}
	if tr.Err() != nil {
		t.Fatalf("budget exhaustion is not an error: %v", tr.Err())
	}
	if s := tr.Step(5); s != StoppedFailed || tr.Steps() != 40 {
		t.Fatalf("terminal trial must not move")
	}
}

func TestDurationBudget(t *testing.T) {
	w := flat(t)
	now := time.Unix(0, 0)
	tr := run(t, Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 1000, 4, 0)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
		Budget: Budget{MaxDuration: 5 * time.Second},
		Now: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	if tr.Reason() != ReasonBudgetExhausted {
		t.Fatalf("reason=%s", tr.Reason())
	}
}

func TestOracleFaultFailsTrial(t *testing.T) {
	boom := errors.New("chunk store offline")
	w := flat(t)
	calls := 0
	o := terrain.OracleFunc(func(c model.Cell, f flags.Set) (terrain.Properties, error) {
		calls++
		if calls > 20 {
			return terrain.Properties{}, boom
		}
		return w.Query(c, f)
	})
	tr := run(t, Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 50, 4, 0)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: o,
	})
	if tr.State() != StoppedFailed || tr.Reason() != ReasonCollaboratorFault || !errors.Is(tr.Err(), boom) {
		t.Fatalf("state=%s reason=%s err=%v", tr.State(), tr.Reason(), tr.Err())
	}
}

func TestInvalidInput(t *testing.T) {
	w := flat(t)
	if _, err := Approximate(Params{Origin: model.C(dom, 0, 4, 0), Goal: goal.At(model.C(dom, 1, 4, 0)), Oracle: w}); !errors.Is(err, ErrNoModes) {
		t.Fatalf("err=%v want ErrNoModes", err)
	}
	_, err := Approximate(Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C("nether", 1, 4, 0)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
	})
	if !errors.Is(err, model.ErrCrossDomain) {
		t.Fatalf("err=%v want ErrCrossDomain", err)
	}
}

func TestStepEventsAndContext(t *testing.T) {
	w := flat(t)
	var accepted, rejected int
	p := Params{
		Origin: model.C(dom, 0, 4, 0),
		Goal:   goal.At(model.C(dom, 3, 4, 3)),
		Modes:  modes(t, model.ModeWalk),
		Oracle: w,
		OnStep: func(e StepEvent) {
			if e.Mode != model.ModeWalk {
				t.Errorf("event mode %s", e.Mode)
			}
			if e.Accepted {
				accepted++
			} else {
				rejected++
			}
		},
	}
	run(t, p)
	if accepted == 0 || rejected == 0 {
		t.Fatalf("accepted=%d rejected=%d", accepted, rejected)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr, _ := Approximate(p)
	if _, err := tr.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if tr.Done() {
		t.Fatalf("cancelled run must not resolve the trial")
	}
}

func TestPreResolvedTrials(t *testing.T) {
	path, err := model.NewPath([]model.Step{
		{Cell: model.C(dom, 0, 4, 0)},
		{Cell: model.C(dom, 1, 4, 0), Mode: model.ModeWalk},
	}, 1)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	g := goal.At(model.C(dom, 1, 4, 0))
	ok := Successful(g, model.NewModeTypeSet(model.ModeWalk), path)
	if ok.State() != StoppedSuccessful || ok.Cost() != path.Cost() || !ok.Cached() {
		t.Fatalf("successful trial: state=%s cost=%v", ok.State(), ok.Cost())
	}
	if ok.Step(100) != StoppedSuccessful || ok.Steps() != 0 {
		t.Fatalf("pre-resolved trial must not search")
	}
	bad := Failed(model.C(dom, 0, 4, 0), g, model.NewModeTypeSet(model.ModeWalk), ReasonNone)
	if bad.State() != StoppedFailed || bad.Reason() != ReasonUnreachable || !math.IsInf(bad.Cost(), 1) {
		t.Fatalf("failed trial: state=%s reason=%s", bad.State(), bad.Reason())
	}
}

func TestFrontierIsFIFOOnTies(t *testing.T) {
	var q frontier
	for i := 0; i < 5; i++ {
		q.push(entry{cell: model.C(dom, int64(i), 0, 0), f: 1, seq: uint64(i)})
	}
	q.push(entry{cell: model.C(dom, 99, 0, 0), f: 0.5, seq: 5})
	if got := q.pop().cell.X; got != 99 {
		t.Fatalf("lowest priority first, got x=%d", got)
	}
	for i := 0; i < 5; i++ {
		if got := q.pop().cell.X; got != int64(i) {
			t.Fatalf("tie order: got x=%d want %d", got, i)
		}
	}
}
