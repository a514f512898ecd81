package mode

import (
	"errors"
	"math"
	"testing"

	"github.com/whimxiqal/journey-sub005/internal/flags"
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

func set(t *testing.T, w *terrain.World, block string, cells ...model.Cell) {
	t.Helper()
	for _, c := range cells {
		if err := w.SetBlock(c, block); err != nil {
			t.Fatalf("set %s at %v: %v", block, c, err)
		}
	}
}

func dests(t *testing.T, mt model.ModeType, c model.Cell, o terrain.Oracle, f flags.Set) map[model.Cell]float64 {
	t.Helper()
	m, err := ForType(mt)
	if err != nil {
		t.Fatalf("mode %s: %v", mt, err)
	}
	ds, err := m.Destinations(c, o, f)
	if err != nil {
		t.Fatalf("%s destinations: %v", mt, err)
	}
	out := make(map[model.Cell]float64, len(ds))
	for _, d := range ds {
		if d.Mode != mt {
			t.Fatalf("destination tagged %s want %s", d.Mode, mt)
		}
		out[d.Cell] = d.Cost
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWalkFlatGround(t *testing.T) {
	w := flat(t)
	got := dests(t, model.ModeWalk, model.C(dom, 0, 4, 0), w, flags.Set{})
	if len(got) != 4 {
		t.Fatalf("got %d destinations want 4: %v", len(got), got)
	}
	for c, cost := range got {
		if c.Y != 4 || !near(cost, 1) {
			t.Fatalf("unexpected destination %v cost %v", c, cost)
		}
	}
}

func TestWalkBlockedWallNeedsJump(t *testing.T) {
	w := flat(t)
	set(t, w, "STONE", model.C(dom, 1, 4, 0))
	origin := model.C(dom, 0, 4, 0)

	if _, ok := dests(t, model.ModeWalk, origin, w, flags.Set{})[model.C(dom, 1, 4, 0)]; ok {
		t.Fatalf("walk must not enter a solid cell")
	}
	cost, ok := dests(t, model.ModeJump, origin, w, flags.Set{})[model.C(dom, 1, 5, 0)]
	if !ok {
		t.Fatalf("jump should reach the top of the wall")
	}
	if cost < model.PlanarLength(1, 1, 0) {
		t.Fatalf("jump cost %v below planar length", cost)
	}
}

func TestWalkFallsIntoPit(t *testing.T) {
	w := flat(t)
	set(t, w, "AIR", model.C(dom, 1, 3, 0), model.C(dom, 1, 2, 0))
	got := dests(t, model.ModeWalk, model.C(dom, 0, 4, 0), w, flags.Set{})
	cost, ok := got[model.C(dom, 1, 2, 0)]
	if !ok {
		t.Fatalf("expected fall to pit floor, got %v", got)
	}
	if !near(cost, model.PlanarLength(1, 2, 0)) {
		t.Fatalf("fall cost=%v want %v", cost, model.PlanarLength(1, 2, 0))
	}

	shallow := dests(t, model.ModeWalk, model.C(dom, 0, 4, 0), w, flags.New(map[string]any{flags.MaxFall: 1}))
	if _, ok := shallow[model.C(dom, 1, 2, 0)]; ok {
		t.Fatalf("max-fall=1 must not allow a two-cell drop")
	}
}

func TestWalkStepsOntoSlab(t *testing.T) {
	w := flat(t)
	set(t, w, "SLAB", model.C(dom, 0, 4, 1))
	if _, ok := dests(t, model.ModeWalk, model.C(dom, 0, 4, 0), w, flags.Set{})[model.C(dom, 0, 5, 1)]; !ok {
		t.Fatalf("walk should step up onto a slab")
	}
}

func TestDoorRespectsFlags(t *testing.T) {
	w := flat(t)
	set(t, w, "DOOR", model.C(dom, 1, 4, 0), model.C(dom, 1, 5, 0))
	set(t, w, "IRON_DOOR", model.C(dom, -1, 4, 0), model.C(dom, -1, 5, 0))
	origin := model.C(dom, 0, 4, 0)

	got := dests(t, model.ModeDoor, origin, w, flags.Set{})
	if len(got) != 1 {
		t.Fatalf("got %v want only the wooden door", got)
	}
	if cost := got[model.C(dom, 1, 4, 0)]; !near(cost, 1+doorEffort) {
		t.Fatalf("door cost=%v", cost)
	}
	if got := dests(t, model.ModeDoor, origin, w, flags.New(map[string]any{flags.AllowIronDoor: nil})); len(got) != 2 {
		t.Fatalf("allow-iron-door: got %v want 2", got)
	}
	if got := dests(t, model.ModeDoor, origin, w, flags.New(map[string]any{flags.NoDoors: true})); len(got) != 0 {
		t.Fatalf("no-doors: got %v want none", got)
	}
}

func TestDigBreaksSoftBlocksOnly(t *testing.T) {
	w := flat(t)
	set(t, w, "STONE", model.C(dom, 1, 4, 0), model.C(dom, 1, 5, 0))
	set(t, w, "BEDROCK", model.C(dom, -1, 4, 0))
	got := dests(t, model.ModeDig, model.C(dom, 0, 4, 0), w, flags.Set{})
	cost, ok := got[model.C(dom, 1, 4, 0)]
	if !ok {
		t.Fatalf("expected dig through stone, got %v", got)
	}
	if !near(cost, 1+digPerHard*3) {
		t.Fatalf("dig cost=%v", cost)
	}
	if _, ok := got[model.C(dom, -1, 4, 0)]; ok {
		t.Fatalf("bedrock is unbreakable")
	}
	if got := dests(t, model.ModeDig, model.C(dom, 0, 4, 0), w, flags.New(map[string]any{flags.NoDig: nil})); len(got) != 0 {
		t.Fatalf("no-dig: got %v", got)
	}
}

func TestClimbLadder(t *testing.T) {
	w := flat(t)
	set(t, w, "LADDER", model.C(dom, 0, 4, 0), model.C(dom, 0, 5, 0), model.C(dom, 0, 6, 0))
	got := dests(t, model.ModeClimb, model.C(dom, 0, 5, 0), w, flags.Set{})
	if _, ok := got[model.C(dom, 0, 6, 0)]; !ok {
		t.Fatalf("expected climb up, got %v", got)
	}
	if _, ok := got[model.C(dom, 0, 4, 0)]; !ok {
		t.Fatalf("expected climb down, got %v", got)
	}
}

func TestSwimAndFly(t *testing.T) {
	w := flat(t)
	set(t, w, "WATER", model.C(dom, 0, 3, 0), model.C(dom, 1, 3, 0))
	got := dests(t, model.ModeSwim, model.C(dom, 0, 3, 0), w, flags.Set{})
	if cost, ok := got[model.C(dom, 1, 3, 0)]; !ok || !near(cost, swimFactor) {
		t.Fatalf("swim to neighbor water: %v", got)
	}
	if got := dests(t, model.ModeSwim, model.C(dom, 5, 4, 5), w, flags.Set{}); len(got) != 0 {
		t.Fatalf("swim out of water: %v", got)
	}

	air := model.C(dom, 5, 8, 5)
	if got := dests(t, model.ModeFly, air, w, flags.Set{}); len(got) != 6 {
		t.Fatalf("fly in open air: got %d want 6", len(got))
	}
	if got := dests(t, model.ModeFly, air, w, flags.New(map[string]any{flags.NoFly: true})); len(got) != 0 {
		t.Fatalf("no-fly: got %v", got)
	}
}

func TestOracleErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	o := terrain.OracleFunc(func(model.Cell, flags.Set) (terrain.Properties, error) {
		return terrain.Properties{}, boom
	})
	m, _ := ForType(model.ModeWalk)
	if _, err := m.Destinations(model.C(dom, 0, 0, 0), o, flags.Set{}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestBadFlagType(t *testing.T) {
	w := flat(t)
	m, _ := ForType(model.ModeWalk)
	_, err := m.Destinations(model.C(dom, 0, 4, 0), w, flags.New(map[string]any{flags.MaxFall: "far"}))
	if !errors.Is(err, flags.ErrFlagType) {
		t.Fatalf("err=%v want ErrFlagType", err)
	}
}

func TestPathValid(t *testing.T) {
	w := flat(t)
	modes, err := ForTypes(model.NewModeTypeSet(model.ModeWalk, model.ModeJump))
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	good, _ := model.NewPath([]model.Step{
		{Cell: model.C(dom, 0, 4, 0)},
		{Cell: model.C(dom, 1, 4, 0), Mode: model.ModeWalk},
		{Cell: model.C(dom, 2, 4, 0), Mode: model.ModeWalk},
	}, 2)
	if ok, err := PathValid(good, modes, w, flags.Set{}); err != nil || !ok {
		t.Fatalf("good path: ok=%v err=%v", ok, err)
	}
	teleport, _ := model.NewPath([]model.Step{
		{Cell: model.C(dom, 0, 4, 0)},
		{Cell: model.C(dom, 5, 4, 0), Mode: model.ModeWalk},
	}, 5)
	if ok, _ := PathValid(teleport, modes, w, flags.Set{}); ok {
		t.Fatalf("non-adjacent step must be invalid")
	}
	if ok, _ := PathValid(model.InvalidPath, modes, w, flags.Set{}); ok {
		t.Fatalf("invalid path must be invalid")
	}
	if Types(modes) != model.NewModeTypeSet(model.ModeWalk, model.ModeJump) {
		t.Fatalf("types mismatch")
	}
}
