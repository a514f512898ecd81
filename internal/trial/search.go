package trial

import (
	"fmt"

	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

// Step performs up to n frontier expansions and returns the resulting state.
// A terminal trial ignores further calls.
func (t *Trial) Step(n int) State {
	if t.state.Terminal() {
		return t.state
	}
	if t.state == Idle {
		t.begin()
		if t.state.Terminal() {
			return t.state
		}
	}
	for i := 0; i < n && t.state == Running; i++ {
		t.expand()
	}
	return t.state
}

func (t *Trial) begin() {
	t.state = Running
	t.start = t.params.Now()
	t.oracle = terrain.NewMemo(t.params.Oracle, t.params.Flags)
	t.best = map[model.Cell]float64{t.origin: 0}
	t.prev = map[model.Cell]link{}
	t.closed = map[model.Cell]struct{}{}

	ok, err := t.goal.Reached(t.origin, t.oracle, t.params.Flags)
	if err != nil {
		t.fault(err)
		return
	}
	if ok {
		p, err := model.NewPath([]model.Step{{Cell: t.origin}}, 0)
		if err != nil {
			t.fail(ReasonInvalidInput, err)
			return
		}
		t.succeed(p)
		return
	}
	t.push(t.origin, 0)
}

func (t *Trial) push(c model.Cell, g float64) {
	t.open.push(entry{cell: c, g: g, f: g + t.est.estimate(c), seq: t.seq})
	t.seq++
}

// expand pops the best live frontier entry, tests it, and relaxes its edges.
func (t *Trial) expand() {
	if b := t.params.Budget; b.MaxSteps > 0 && t.steps >= b.MaxSteps {
		t.fail(ReasonBudgetExhausted, nil)
		return
	}
	if b := t.params.Budget; b.MaxDuration > 0 && t.params.Now().Sub(t.start) > b.MaxDuration {
		t.fail(ReasonBudgetExhausted, nil)
		return
	}

	var cur entry
	for {
		if t.open.Len() == 0 {
			t.fail(ReasonUnreachable, nil)
			return
		}
		cur = t.open.pop()
		if _, done := t.closed[cur.cell]; done {
			continue
		}
		if cur.g > t.best[cur.cell] {
			continue
		}
		break
	}
	t.steps++

	ok, err := t.goal.Reached(cur.cell, t.oracle, t.params.Flags)
	if err != nil {
		t.fault(err)
		return
	}
	if ok {
		t.finish(cur)
		return
	}
	t.closed[cur.cell] = struct{}{}

	for _, m := range t.params.Modes {
		dests, err := m.Destinations(cur.cell, t.oracle, t.params.Flags)
		if err != nil {
			t.fault(err)
			return
		}
		for _, d := range dests {
			if d.Cell.Domain != t.origin.Domain || d.Cost < 0 {
				continue
			}
			g := cur.g + d.Cost
			old, seen := t.best[d.Cell]
			accepted := !seen || g < old
			if t.params.OnStep != nil {
				t.params.OnStep(StepEvent{From: cur.cell, Cell: d.Cell, Mode: d.Mode, Accepted: accepted})
			}
			if !accepted {
				continue
			}
			t.best[d.Cell] = g
			t.prev[d.Cell] = link{from: cur.cell, mode: d.Mode}
			delete(t.closed, d.Cell)
			t.push(d.Cell, g)
		}
	}
}

func (t *Trial) finish(last entry) {
	var rev []model.Step
	c := last.cell
	for c != t.origin {
		l, ok := t.prev[c]
		if !ok {
			t.fail(ReasonInvalidInput, fmt.Errorf("broken predecessor chain at %s", c))
			return
		}
		rev = append(rev, model.Step{Cell: c, Mode: l.mode})
		c = l.from
	}
	rev = append(rev, model.Step{Cell: t.origin})
	steps := make([]model.Step, len(rev))
	for i := range rev {
		steps[i] = rev[len(rev)-1-i]
	}
	p, err := model.NewPath(steps, last.g)
	if err != nil {
		t.fail(ReasonInvalidInput, err)
		return
	}
	t.succeed(p)
}

func (t *Trial) succeed(p model.Path) {
	t.path = p
	t.estimate = p.Cost()
	t.state = StoppedSuccessful
	t.release()
}

func (t *Trial) fault(err error) {
	t.fail(ReasonCollaboratorFault, err)
}

func (t *Trial) fail(reason FailReason, err error) {
	t.path = model.InvalidPath
	t.reason = reason
	t.err = err
	t.state = StoppedFailed
	t.release()
}

// release drops search scratch state once terminal.
func (t *Trial) release() {
	t.open = nil
	t.best = nil
	t.prev = nil
	t.closed = nil
}
