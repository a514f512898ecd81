package events

import (
	"encoding/json"
	"math"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/itinerary"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

// Envelope is the wire form for observers.
type Envelope struct {
	Type string          `json:"type"`
	At   string          `json:"at"`
	Data json.RawMessage `json:"data"`
}

type CellJSON struct {
	Domain string `json:"domain"`
	X      int64  `json:"x"`
	Y      int64  `json:"y"`
	Z      int64  `json:"z"`
}

func Cell(c model.Cell) CellJSON {
	return CellJSON{Domain: string(c.Domain), X: c.X, Y: c.Y, Z: c.Z}
}

func (c CellJSON) Model() model.Cell {
	return model.C(model.DomainID(c.Domain), c.X, c.Y, c.Z)
}

type StepJSON struct {
	Cell CellJSON `json:"cell"`
	Mode string   `json:"mode,omitempty"`
}

type LegJSON struct {
	Kind  string     `json:"kind"`
	From  CellJSON   `json:"from"`
	To    CellJSON   `json:"to"`
	Mode  string     `json:"mode,omitempty"`
	Cost  float64    `json:"cost"`
	Steps []StepJSON `json:"steps,omitempty"`
}

type ItineraryJSON struct {
	Cost float64   `json:"cost"`
	Legs []LegJSON `json:"legs"`
}

// Summarize renders an itinerary. withSteps controls whether per-cell steps
// are included.
func Summarize(it *itinerary.Itinerary, withSteps bool) ItineraryJSON {
	out := ItineraryJSON{Cost: it.Cost()}
	for _, l := range it.Legs() {
		lj := LegJSON{From: Cell(l.Start()), To: Cell(l.End()), Cost: l.Cost()}
		if l.IsPort {
			lj.Kind = "port"
			lj.Mode = l.Port.Mode.String()
		} else {
			lj.Kind = "path"
			lj.Mode = l.Path.Modes().String()
			if withSteps {
				for i, s := range l.Path.Steps() {
					sj := StepJSON{Cell: Cell(s.Cell)}
					if i > 0 {
						sj.Mode = s.Mode.String()
					}
					lj.Steps = append(lj.Steps, sj)
				}
			}
		}
		out.Legs = append(out.Legs, lj)
	}
	return out
}

func finite(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return -1
	}
	return f
}

// JSON returns a sink that encodes every event into an Envelope and hands it
// to emit. Step events are skipped unless withSteps is set.
func JSON(emit func([]byte), withSteps bool) Sink {
	send := func(kind string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		b, err := json.Marshal(Envelope{Type: kind, At: time.Now().UTC().Format(time.RFC3339Nano), Data: data})
		if err != nil {
			return
		}
		emit(b)
	}
	s := Sink{
		SearchStartedFn: func(e SearchStarted) {
			send("search_started", map[string]any{
				"session_id": e.SessionID,
				"caller":     e.Caller,
				"origin":     Cell(e.Origin),
				"goal":       e.Goal,
				"modes":      e.Modes.String(),
			})
		},
		TrialResolvedFn: func(e TrialResolved) {
			send("trial_resolved", map[string]any{
				"session_id": e.SessionID,
				"leg":        e.Leg,
				"origin":     Cell(e.Origin),
				"goal":       e.Goal,
				"cached":     e.Cached,
				"success":    e.Success,
				"reason":     e.Reason,
				"cost":       finite(e.Cost),
				"steps":      e.Steps,
				"elapsed_ms": e.Elapsed.Milliseconds(),
			})
		},
		FoundSolutionFn: func(e FoundSolution) {
			send("found_solution", map[string]any{
				"session_id": e.SessionID,
				"caller":     e.Caller,
				"itinerary":  Summarize(e.Itinerary, false),
			})
		},
		SearchStoppedFn: func(e SearchStopped) {
			send("search_stopped", map[string]any{
				"session_id": e.SessionID,
				"caller":     e.Caller,
				"state":      e.State,
				"reason":     e.Reason,
				"steps":      e.Steps,
				"elapsed_ms": e.Elapsed.Milliseconds(),
			})
		},
		JourneyFn: func(e JourneyUpdate) {
			send("journey", map[string]any{
				"caller":   e.Caller,
				"state":    e.State,
				"leg":      e.Leg,
				"advanced": e.Advanced,
				"arrived":  e.Arrived,
				"consumed": e.Consumed,
			})
		},
	}
	if withSteps {
		s.StepEvaluatedFn = func(e StepEvaluated) {
			send("step_evaluated", map[string]any{
				"session_id": e.SessionID,
				"leg":        e.Leg,
				"cell":       Cell(e.Cell),
				"mode":       e.Mode.String(),
				"accepted":   e.Accepted,
			})
		}
	}
	return s
}
