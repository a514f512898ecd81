package model

import (
	"errors"
	"fmt"
	"math"
)

// DomainID names one coordinate space (a world). Only equality is meaningful.
type DomainID string

var ErrCrossDomain = errors.New("cells are in different domains")

// Cell is one block position inside a domain.
type Cell struct {
	X      int64
	Y      int64
	Z      int64
	Domain DomainID
}

func C(domain DomainID, x, y, z int64) Cell {
	return Cell{X: x, Y: y, Z: z, Domain: domain}
}

// DistanceSquared is +Inf when the cells are in different domains.
func (c Cell) DistanceSquared(o Cell) float64 {
	if c.Domain != o.Domain {
		return math.Inf(1)
	}
	dx := float64(c.X - o.X)
	dy := float64(c.Y - o.Y)
	dz := float64(c.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

func (c Cell) Offset(dx, dy, dz int64) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz, Domain: c.Domain}
}

func (c Cell) Up() Cell   { return c.Offset(0, 1, 0) }
func (c Cell) Down() Cell { return c.Offset(0, -1, 0) }

// Center is the location an agent occupies when standing in the cell.
func (c Cell) Center() Location {
	return Location{X: float64(c.X) + 0.5, Y: float64(c.Y), Z: float64(c.Z) + 0.5, Domain: c.Domain}
}

func (c Cell) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", c.Domain, c.X, c.Y, c.Z)
}

// SameDomain rejects pairs that cannot be compared by distance.
func SameDomain(a, b Cell) error {
	if a.Domain != b.Domain {
		return fmt.Errorf("%w: %s vs %s", ErrCrossDomain, a.Domain, b.Domain)
	}
	return nil
}

// Location is a continuous agent position.
type Location struct {
	X      float64
	Y      float64
	Z      float64
	Domain DomainID
}

func (l Location) DistanceSquared(o Location) float64 {
	if l.Domain != o.Domain {
		return math.Inf(1)
	}
	dx := l.X - o.X
	dy := l.Y - o.Y
	dz := l.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Block is the cell containing the location.
func (l Location) Block() Cell {
	return Cell{
		X:      int64(math.Floor(l.X)),
		Y:      int64(math.Floor(l.Y)),
		Z:      int64(math.Floor(l.Z)),
		Domain: l.Domain,
	}
}

func (l Location) Sub(o Location) Vec3 {
	return Vec3{X: l.X - o.X, Y: l.Y - o.Y, Z: l.Z - o.Z}
}

func (l Location) Add(v Vec3) Location {
	return Location{X: l.X + v.X, Y: l.Y + v.Y, Z: l.Z + v.Z, Domain: l.Domain}
}

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f} }

// PlanarLength measures a displacement where any vertical component has to be
// covered along a 45 degree diagonal. It is never shorter than the Euclidean
// length, and every mode charges at least this much for a move.
func PlanarLength(dx, dy, dz float64) float64 {
	h := math.Sqrt(dx*dx + dz*dz)
	v := math.Abs(dy)
	if h >= v {
		return (h - v) + v*math.Sqrt2
	}
	return h*math.Sqrt2 + (v - h)
}
