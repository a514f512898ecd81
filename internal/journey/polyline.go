package journey

import (
	"math"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

// polyline is a leg's centre line with cumulative lengths. cum[i] is the
// length from the first point to pts[i].
type polyline struct {
	pts []model.Location
	cum []float64
}

func newPolyline(pts []model.Location) polyline {
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + pts[i].Sub(pts[i-1]).Length()
	}
	return polyline{pts: pts, cum: cum}
}

func (p polyline) length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

func (p polyline) segments() int {
	if len(p.pts) < 2 {
		return 0
	}
	return len(p.pts) - 1
}

// project returns the along-line distance of loc's projection onto segment i,
// clamped to the segment, and the squared distance from loc to that point.
func (p polyline) project(i int, loc model.Location) (along, off float64) {
	a, b := p.pts[i], p.pts[i+1]
	dir := b.Sub(a)
	l := dir.Length()
	if l == 0 {
		return p.cum[i], loc.DistanceSquared(a)
	}
	t := loc.Sub(a).Dot(dir) / (l * l)
	t = math.Max(0, math.Min(1, t))
	at := a.Add(dir.Scale(t))
	return p.cum[i] + t*l, loc.DistanceSquared(at)
}

// at interpolates the point d along the line, starting the segment search at
// hint and returning the segment it ended on.
func (p polyline) at(d float64, hint int) (model.Location, int) {
	n := p.segments()
	if n == 0 {
		return p.pts[0], 0
	}
	i := hint
	for i < n-1 && p.cum[i+1] < d {
		i++
	}
	a, b := p.pts[i], p.pts[i+1]
	l := p.cum[i+1] - p.cum[i]
	if l == 0 {
		return a, i
	}
	t := math.Max(0, math.Min(1, (d-p.cum[i])/l))
	return a.Add(b.Sub(a).Scale(t)), i
}
