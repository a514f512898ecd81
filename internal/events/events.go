// Package events carries search and journey lifecycle notifications. A Sink is
// a set of optional callbacks; nothing in the search depends on any of them
// being set.
package events

import (
	"time"

	"github.com/whimxiqal/journey-sub005/internal/itinerary"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

type SearchStarted struct {
	SessionID string
	Caller    string
	Origin    model.Cell
	Goal      string
	Modes     model.ModeTypeSet
}

type StepEvaluated struct {
	SessionID string
	Leg       int
	From      model.Cell
	Cell      model.Cell
	Mode      model.ModeType
	Accepted  bool
}

// TrialResolved fires once per leg when its trial reaches a terminal state.
type TrialResolved struct {
	SessionID string
	Leg       int
	Origin    model.Cell
	Goal      string
	Modes     model.ModeTypeSet
	Cached    bool
	Success   bool
	Reason    string
	Cost      float64
	Steps     int
	Elapsed   time.Duration
}

type FoundSolution struct {
	SessionID string
	Caller    string
	Itinerary *itinerary.Itinerary
}

type SearchStopped struct {
	SessionID string
	Caller    string
	State     string
	Reason    string
	Steps     int
	Elapsed   time.Duration
}

type JourneyUpdate struct {
	Caller   string
	State    string
	Leg      int
	Advanced bool
	Arrived  bool
	Consumed float64
}

type Sink struct {
	SearchStartedFn func(SearchStarted)
	StepEvaluatedFn func(StepEvaluated)
	TrialResolvedFn func(TrialResolved)
	FoundSolutionFn func(FoundSolution)
	SearchStoppedFn func(SearchStopped)
	JourneyFn       func(JourneyUpdate)
}

func (s Sink) SearchStarted(e SearchStarted) {
	if s.SearchStartedFn == nil {
		return
	}
	s.SearchStartedFn(e)
}

func (s Sink) StepEvaluated(e StepEvaluated) {
	if s.StepEvaluatedFn == nil {
		return
	}
	s.StepEvaluatedFn(e)
}

// WantsSteps lets callers skip building step events nobody reads.
func (s Sink) WantsSteps() bool { return s.StepEvaluatedFn != nil }

func (s Sink) TrialResolved(e TrialResolved) {
	if s.TrialResolvedFn == nil {
		return
	}
	s.TrialResolvedFn(e)
}

func (s Sink) FoundSolution(e FoundSolution) {
	if s.FoundSolutionFn == nil {
		return
	}
	s.FoundSolutionFn(e)
}

func (s Sink) SearchStopped(e SearchStopped) {
	if s.SearchStoppedFn == nil {
		return
	}
	s.SearchStoppedFn(e)
}

func (s Sink) Journey(e JourneyUpdate) {
	if s.JourneyFn == nil {
		return
	}
	s.JourneyFn(e)
}

// Fanout calls every sink in order for each event.
func Fanout(sinks ...Sink) Sink {
	var out Sink
	for _, s := range sinks {
		if s.SearchStartedFn != nil {
			prev := out.SearchStartedFn
			out.SearchStartedFn = func(e SearchStarted) { call(prev, e); s.SearchStartedFn(e) }
		}
		if s.StepEvaluatedFn != nil {
			prev := out.StepEvaluatedFn
			out.StepEvaluatedFn = func(e StepEvaluated) { call(prev, e); s.StepEvaluatedFn(e) }
		}
		if s.TrialResolvedFn != nil {
			prev := out.TrialResolvedFn
			out.TrialResolvedFn = func(e TrialResolved) { call(prev, e); s.TrialResolvedFn(e) }
		}
		if s.FoundSolutionFn != nil {
			prev := out.FoundSolutionFn
			out.FoundSolutionFn = func(e FoundSolution) { call(prev, e); s.FoundSolutionFn(e) }
		}
		if s.SearchStoppedFn != nil {
			prev := out.SearchStoppedFn
			out.SearchStoppedFn = func(e SearchStopped) { call(prev, e); s.SearchStoppedFn(e) }
		}
		if s.JourneyFn != nil {
			prev := out.JourneyFn
			out.JourneyFn = func(e JourneyUpdate) { call(prev, e); s.JourneyFn(e) }
		}
	}
	return out
}

func call[E any](fn func(E), e E) {
	if fn != nil {
		fn(e)
	}
}
