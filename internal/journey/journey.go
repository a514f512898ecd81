// Package journey follows an agent along a resolved itinerary. It is driven by
// location updates from the caller; nothing in here ticks on its own except
// the optional animation task.
package journey

import (
	"fmt"
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/itinerary"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

type State uint8

const (
	StoppedIncomplete State = iota
	Running
	StoppedComplete
)

func (s State) String() string {
	switch s {
	case StoppedIncomplete:
		return "stopped_incomplete"
	case Running:
		return "running"
	case StoppedComplete:
		return "stopped_complete"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

const (
	DefaultCompletionDistance = 1.0
	DefaultWindowLength       = 128.0
	DefaultSpacing            = 0.5
	// lookahead bounds how many segments past the current one a single
	// visit may skip over.
	lookahead = 8
)

type Options struct {
	// CompletionDistance is squared.
	CompletionDistance float64
	WindowLength       float64
	Spacing            float64
	Caller             string
	Events             events.Sink
}

func (o Options) withDefaults() Options {
	if o.CompletionDistance <= 0 {
		o.CompletionDistance = DefaultCompletionDistance
	}
	if o.WindowLength <= 0 {
		o.WindowLength = DefaultWindowLength
	}
	if o.Spacing <= 0 {
		o.Spacing = DefaultSpacing
	}
	return o
}

// Waypoint is one animation point on the current leg.
type Waypoint struct {
	Location model.Location
	Leg      int
	Along    float64
}

// Visit reports what one location update did.
type Visit struct {
	State    State
	Leg      int
	Advanced bool
	Arrived  bool
	Consumed float64
}

// Journey has one owner. The mutex only lets an animation task read the
// window while the owner visits.
type Journey struct {
	mu   sync.Mutex
	it   *itinerary.Itinerary
	trav *itinerary.Traversal
	opts Options

	state State
	leg   itinerary.Leg
	line  polyline
	// consumed only grows within a leg.
	consumed float64
	seg      int

	window  []Waypoint
	genTo   float64
	genSeg  int
	arrived int
}

func New(it *itinerary.Itinerary, opts Options) *Journey {
	return &Journey{it: it, trav: it.Traverse(), opts: opts.withDefaults()}
}

func (j *Journey) Itinerary() *itinerary.Itinerary { return j.it }

func (j *Journey) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Journey) Leg() itinerary.Leg {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.leg
}

func (j *Journey) Consumed() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.consumed
}

// Window returns a copy of the upcoming waypoints.
func (j *Journey) Window() []Waypoint {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Waypoint(nil), j.window...)
}

// Run rewinds to the first leg and starts tracking.
func (j *Journey) Run() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trav = j.trav.Restart()
	j.state = Running
	j.load(j.trav.Get())
	j.emit(Visit{State: j.state, Leg: j.leg.Index})
}

// Stop abandons the journey without completing it.
func (j *Journey) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Running {
		return
	}
	j.state = StoppedIncomplete
	j.window = nil
	j.emit(Visit{State: j.state, Leg: j.leg.Index, Consumed: j.consumed})
}

// Visit records that the agent is now at loc.
func (j *Journey) Visit(loc model.Location) Visit {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Running {
		return Visit{State: j.state, Leg: j.leg.Index, Consumed: j.consumed}
	}

	if loc.DistanceSquared(j.leg.End().Center()) <= j.opts.CompletionDistance {
		if !j.trav.HasNext() {
			j.state = StoppedComplete
			j.arrived++
			j.window = nil
			v := Visit{State: j.state, Leg: j.leg.Index, Arrived: true, Consumed: j.line.length()}
			j.consumed = j.line.length()
			j.emit(v)
			return v
		}
		j.load(j.trav.Next())
		v := Visit{State: j.state, Leg: j.leg.Index, Advanced: true}
		j.emit(v)
		return v
	}

	j.advance(loc)
	j.fill()
	return Visit{State: j.state, Leg: j.leg.Index, Consumed: j.consumed}
}

func (j *Journey) load(l itinerary.Leg) {
	j.leg = l
	j.consumed = 0
	j.seg = 0
	j.window = j.window[:0]
	j.genTo = 0
	j.genSeg = 0
	if l.IsPort {
		// Ports are instantaneous; there is nothing to animate.
		j.line = newPolyline([]model.Location{l.Port.Origin.Center()})
		return
	}
	pts := make([]model.Location, 0, l.Path.Len())
	for i := 0; i < l.Path.Len(); i++ {
		pts = append(pts, l.Path.Step(i).Cell.Center())
	}
	j.line = newPolyline(pts)
	j.fill()
}

// advance projects loc onto the nearest of the next few segments. Progress
// never moves backwards.
func (j *Journey) advance(loc model.Location) {
	n := j.line.segments()
	if n == 0 || loc.Domain != j.line.pts[0].Domain {
		return
	}
	bestAlong, bestOff, bestSeg := 0.0, -1.0, j.seg
	for i := j.seg; i < n && i <= j.seg+lookahead; i++ {
		along, off := j.line.project(i, loc)
		if bestOff < 0 || off < bestOff {
			bestAlong, bestOff, bestSeg = along, off, i
		}
	}
	if bestAlong > j.consumed {
		j.consumed = bestAlong
		j.seg = bestSeg
	}
}

// fill drops passed waypoints and extends the window up to WindowLength ahead
// of the consumed length.
func (j *Journey) fill() {
	drop := 0
	for drop < len(j.window) && j.window[drop].Along < j.consumed {
		drop++
	}
	if drop > 0 {
		j.window = append(j.window[:0], j.window[drop:]...)
	}
	if j.line.segments() == 0 {
		return
	}
	if j.genTo < j.consumed {
		j.genTo = j.consumed
	}
	limit := j.consumed + j.opts.WindowLength
	total := j.line.length()
	for j.genTo <= total && j.genTo <= limit {
		var loc model.Location
		loc, j.genSeg = j.line.at(j.genTo, j.genSeg)
		j.window = append(j.window, Waypoint{Location: loc, Leg: j.leg.Index, Along: j.genTo})
		j.genTo += j.opts.Spacing
	}
}

func (j *Journey) emit(v Visit) {
	j.opts.Events.Journey(events.JourneyUpdate{
		Caller:   j.opts.Caller,
		State:    v.State.String(),
		Leg:      v.Leg,
		Advanced: v.Advanced,
		Arrived:  v.Arrived,
		Consumed: v.Consumed,
	})
}

// Arrivals counts transitions to StoppedComplete. It is at most one.
func (j *Journey) Arrivals() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.arrived
}
