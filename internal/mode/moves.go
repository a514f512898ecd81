package mode

import (
	"math"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

// Extra cost on top of the displacement length. Every move costs at least
// model.PlanarLength of its displacement.
const (
	jumpEffort   = 0.5
	swimFactor   = 1.5
	climbFactor  = 1.2
	doorEffort   = 1.0
	digPerHard   = 2.0
	slabMaxRise  = 0.5
	defaultFall  = 3
	defaultHard  = 2.0
	maxFallLimit = 64
)

var lateral = [4][2]int64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

type moveOpts struct {
	MaxFall        int     `flag:"max-fall"`
	MaxDigHardness float64 `flag:"max-dig-hardness"`
	NoFly          bool    `flag:"no-fly"`
	NoDig          bool    `flag:"no-dig"`
	NoDoors        bool    `flag:"no-doors"`
	AllowIronDoor  bool    `flag:"allow-iron-door"`
}

func decodeOpts(f flags.Set) (moveOpts, error) {
	opts := moveOpts{MaxFall: defaultFall, MaxDigHardness: defaultHard}
	if err := f.Decode(&opts); err != nil {
		return opts, err
	}
	if opts.MaxFall < 0 {
		opts.MaxFall = 0
	}
	if opts.MaxFall > maxFallLimit {
		opts.MaxFall = maxFallLimit
	}
	return opts, nil
}

// probe wraps the oracle for one expansion. The first error sticks and later
// queries return zero properties, so move code reads straight through.
type probe struct {
	o   terrain.Oracle
	f   flags.Set
	err error
}

func (p *probe) at(c model.Cell) terrain.Properties {
	if p.err != nil {
		return terrain.Properties{}
	}
	props, err := p.o.Query(c, p.f)
	if err != nil {
		p.err = err
		return terrain.Properties{}
	}
	return props
}

// fits: feet and head both free.
func (p *probe) fits(c model.Cell) bool {
	return p.at(c).StandIn && p.at(c.Up()).Passable
}

func (p *probe) supported(c model.Cell) bool {
	if p.at(c.Down()).StandOn {
		return true
	}
	return p.at(c).Climbable || p.at(c.Down()).Climbable
}

func (p *probe) enterable(c model.Cell) bool {
	props := p.at(c)
	return props.StandIn && props.LaterallyPassable
}

type collector struct {
	mode model.ModeType
	out  []Destination
}

func (c *collector) add(from, to model.Cell, extra float64, factor float64) {
	d := model.PlanarLength(float64(to.X-from.X), float64(to.Y-from.Y), float64(to.Z-from.Z))
	c.out = append(c.out, Destination{Cell: to, Cost: d*factor + extra, Mode: c.mode})
}

func walk(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	opts, err := decodeOpts(f)
	if err != nil {
		return nil, err
	}
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeWalk}
	if !p.supported(c) {
		return nil, p.err
	}
	for _, dir := range lateral {
		n := c.Offset(dir[0], 0, dir[1])
		if p.enterable(n) && p.fits(n) {
			if p.supported(n) {
				col.add(c, n, 0, 1)
				continue
			}
			// Drop until something holds us up.
			for k := int64(1); k <= int64(opts.MaxFall); k++ {
				below := n.Offset(0, -k, 0)
				if !p.at(below).StandIn {
					break
				}
				if p.supported(below) {
					col.add(c, below, 0, 1)
					break
				}
			}
			continue
		}
		// Half-height blocks are stepped onto without jumping.
		nb := p.at(n)
		if nb.StandOn && nb.Height > 0 && nb.Height <= slabMaxRise && p.fits(n.Up()) && p.at(c.Up().Up()).Passable {
			col.add(c, n.Up(), 0, 1)
		}
	}
	return col.out, p.err
}

func jump(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeJump}
	if !p.at(c.Down()).StandOn || !p.at(c.Up().Up()).Passable {
		return nil, p.err
	}
	for _, dir := range lateral {
		n := c.Offset(dir[0], 0, dir[1])
		nb := p.at(n)
		if nb.StandOn && nb.Height > slabMaxRise && p.fits(n.Up()) {
			col.add(c, n.Up(), jumpEffort, 1)
			continue
		}
		// One-cell gap at the same level.
		if p.fits(n) && p.at(n.Up().Up()).Passable && !p.supported(n) {
			far := c.Offset(2*dir[0], 0, 2*dir[1])
			if p.fits(far) && p.at(far.Down()).StandOn {
				col.add(c, far, jumpEffort, 1)
			}
		}
	}
	return col.out, p.err
}

func swim(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeSwim}
	if !p.at(c).Water {
		return nil, p.err
	}
	for _, n := range neighbors6(c) {
		nb := p.at(n)
		switch {
		case nb.Water:
			col.add(c, n, 0, swimFactor)
		case n.Y >= c.Y && p.fits(n) && p.supported(n):
			col.add(c, n, 0, swimFactor)
		}
	}
	return col.out, p.err
}

func climb(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeClimb}
	here := p.at(c)
	if here.Climbable {
		up := c.Up()
		ub := p.at(up)
		if ub.Passable && ub.VerticallyPassable && p.at(up.Up()).Passable {
			col.add(c, up, 0, climbFactor)
		}
	}
	down := c.Down()
	if p.at(down).Climbable {
		col.add(c, down, 0, climbFactor)
	}
	return col.out, p.err
}

func fly(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	opts, err := decodeOpts(f)
	if err != nil {
		return nil, err
	}
	if opts.NoFly {
		return nil, nil
	}
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeFly}
	for _, n := range neighbors6(c) {
		nb := p.at(n)
		if !nb.Passable || !p.at(n.Up()).Passable {
			continue
		}
		if n.Y != c.Y && !nb.VerticallyPassable {
			continue
		}
		col.add(c, n, 0, 1)
	}
	return col.out, p.err
}

func dig(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	opts, err := decodeOpts(f)
	if err != nil {
		return nil, err
	}
	if opts.NoDig {
		return nil, nil
	}
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeDig}
	if !p.supported(c) {
		return nil, p.err
	}
	for _, dir := range lateral {
		n := c.Offset(dir[0], 0, dir[1])
		if !p.at(n.Down()).StandOn {
			continue
		}
		total, needed, ok := 0.0, false, true
		for _, cell := range [2]model.Cell{n, n.Up()} {
			props := p.at(cell)
			if props.Passable {
				continue
			}
			if !props.Breakable() || props.Door != nil || props.Hardness > opts.MaxDigHardness {
				ok = false
				break
			}
			needed = true
			total += props.Hardness
		}
		if ok && needed {
			col.add(c, n, digPerHard*math.Max(total, 0.1), 1)
		}
	}
	return col.out, p.err
}

func door(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	opts, err := decodeOpts(f)
	if err != nil {
		return nil, err
	}
	if opts.NoDoors {
		return nil, nil
	}
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeDoor}
	if !p.supported(c) {
		return nil, p.err
	}
	for _, dir := range lateral {
		n := c.Offset(dir[0], 0, dir[1])
		d := p.at(n).Door
		if d == nil || d.Open {
			continue
		}
		if d.Reinforced && !opts.AllowIronDoor {
			continue
		}
		head := p.at(n.Up())
		if !head.Passable && head.Door == nil {
			continue
		}
		if !p.at(n.Down()).StandOn {
			continue
		}
		col.add(c, n, doorEffort, 1)
	}
	return col.out, p.err
}

func boat(c model.Cell, o terrain.Oracle, f flags.Set) ([]Destination, error) {
	p := &probe{o: o, f: f}
	col := &collector{mode: model.ModeBoat}
	// A boat rides in the cell above the water surface.
	if !p.at(c.Down()).Water || !p.at(c).Passable || p.at(c).Water {
		return nil, p.err
	}
	for _, dir := range lateral {
		n := c.Offset(dir[0], 0, dir[1])
		if p.at(n.Down()).Water && p.at(n).Passable && !p.at(n).Water {
			col.add(c, n, 0, 1)
		}
	}
	return col.out, p.err
}

func neighbors6(c model.Cell) [6]model.Cell {
	return [6]model.Cell{
		c.Offset(1, 0, 0), c.Offset(-1, 0, 0),
		c.Up(), c.Down(),
		c.Offset(0, 0, 1), c.Offset(0, 0, -1),
	}
}
