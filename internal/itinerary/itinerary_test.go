package itinerary

import (
	"errors"
	"testing"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

func line(t *testing.T, d model.DomainID, x0, x1 int64) model.Path {
	t.Helper()
	var steps []model.Step
	for x := x0; x <= x1; x++ {
		s := model.Step{Cell: model.C(d, x, 4, 0)}
		if x != x0 {
			s.Mode = model.ModeWalk
		}
		steps = append(steps, s)
	}
	p, err := model.NewPath(steps, float64(x1-x0))
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	return p
}

func threeLegs(t *testing.T) *Itinerary {
	t.Helper()
	a := line(t, "overworld", 0, 3)
	b := line(t, "nether", 10, 12)
	c := line(t, "end", 0, 5)
	it, err := New([]model.Path{a, b, c}, []model.Port{
		{Origin: a.Destination(), Destination: b.Origin(), Mode: model.ModeNetherPortal, Cost: 4},
		{Origin: b.Destination(), Destination: c.Origin(), Mode: model.ModeTeleport, Cost: 1.5},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return it
}

func TestCostSumsEveryLeg(t *testing.T) {
	for n := 1; n <= 4; n++ {
		var paths []model.Path
		var ports []model.Port
		want := 0.0
		for i := 0; i < n; i++ {
			d := model.DomainID(string(rune('a' + i)))
			p := line(t, d, 0, int64(i+1))
			if i > 0 {
				port := model.Port{Origin: paths[i-1].Destination(), Destination: p.Origin(), Mode: model.ModeTeleport, Cost: float64(i) * 0.5}
				ports = append(ports, port)
				want += port.Cost
			}
			paths = append(paths, p)
			want += p.Cost()
		}
		it, err := New(paths, ports)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if it.Cost() != want {
			t.Fatalf("n=%d: cost=%v want %v", n, it.Cost(), want)
		}
		if it.Len() != 2*n-1 {
			t.Fatalf("n=%d: len=%d", n, it.Len())
		}
	}
}

func TestTraversalWalksLegsInOrder(t *testing.T) {
	it := threeLegs(t)
	tr := it.Traverse()
	var kinds []bool
	kinds = append(kinds, tr.Get().IsPort)
	for tr.HasNext() {
		kinds = append(kinds, tr.Next().IsPort)
	}
	want := []bool{false, true, false, true, false}
	if len(kinds) != len(want) {
		t.Fatalf("visited %d legs want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("leg %d isPort=%v", i, kinds[i])
		}
	}
	if tr.Get().End() != it.Destination() {
		t.Fatalf("last leg ends at %v", tr.Get().End())
	}

	fresh := tr.Restart()
	if fresh.Get().Index != 0 || fresh.Get().Start() != it.Origin() || !fresh.HasNext() {
		t.Fatalf("restart did not rewind: %+v", fresh.Get())
	}
	if tr.HasNext() {
		t.Fatalf("restart must not move the old cursor")
	}
}

func TestRejectsTeleportGaps(t *testing.T) {
	a := line(t, "overworld", 0, 3)
	b := line(t, "nether", 10, 12)
	_, err := New([]model.Path{a, b}, []model.Port{
		{Origin: model.C("overworld", 2, 4, 0), Destination: b.Origin(), Mode: model.ModeNetherPortal, Cost: 1},
	})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("err=%v want ErrDisconnected", err)
	}
	_, err = New([]model.Path{a, b}, []model.Port{
		{Origin: a.Destination(), Destination: model.C("nether", 0, 0, 0), Mode: model.ModeNetherPortal, Cost: 1},
	})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("err=%v want ErrDisconnected", err)
	}
	if _, err := New(nil, nil); !errors.Is(err, ErrShape) {
		t.Fatalf("err=%v want ErrShape", err)
	}
	if _, err := Single(model.InvalidPath); !errors.Is(err, model.ErrEmptyPath) {
		t.Fatalf("err=%v want ErrEmptyPath", err)
	}
}

func TestAlternatingCursorPanicsPastEnd(t *testing.T) {
	seq := NewAlternating[string, int]("a")
	seq.Append(1, "b")
	c := seq.Cursor()
	c.Next()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	c.Next()
}
