package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/journey"
	"github.com/whimxiqal/journey-sub005/internal/mode"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/session"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// GoalJSON selects a goal shape by Kind: "at", "near", "any_of" or "expr".
type GoalJSON struct {
	Kind  string            `json:"kind"`
	Cell  *events.CellJSON  `json:"cell,omitempty"`
	Cells []events.CellJSON `json:"cells,omitempty"`
	// Distance is the completion distance for "near" (not squared).
	Distance float64 `json:"distance,omitempty"`
	Expr     string  `json:"expr,omitempty"`
}

// Goal builds the goal. completion is the squared completion distance given
// to "at" goals.
func (g GoalJSON) Goal(completion float64) (goal.Goal, error) {
	switch strings.ToLower(g.Kind) {
	case "", "at":
		if g.Cell == nil {
			return nil, badRequest("goal %q needs a cell", g.Kind)
		}
		return goal.Near(g.Cell.Model(), completion), nil
	case "near":
		if g.Cell == nil {
			return nil, badRequest("goal near needs a cell")
		}
		if g.Distance < 0 {
			return nil, badRequest("goal near: negative distance")
		}
		return goal.Near(g.Cell.Model(), g.Distance*g.Distance), nil
	case "any_of":
		if len(g.Cells) == 0 {
			return nil, badRequest("goal any_of needs cells")
		}
		pts := make([]model.Cell, 0, len(g.Cells))
		for _, c := range g.Cells {
			pts = append(pts, c.Model())
		}
		return goal.NewAnyOf(pts...), nil
	case "expr":
		e, err := goal.CompileExpr(g.Expr)
		if err != nil {
			return nil, badRequest("goal expr: %v", err)
		}
		return e, nil
	}
	return nil, badRequest("unknown goal kind %q", g.Kind)
}

// SearchRequest is the body of POST /v1/searches.
type SearchRequest struct {
	Caller    string          `json:"caller"`
	Origin    events.CellJSON `json:"origin"`
	Goal      GoalJSON        `json:"goal"`
	Modes     []string        `json:"modes"`
	Flags     map[string]any  `json:"flags,omitempty"`
	PortModes []string        `json:"port_modes,omitempty"`
	Heuristic string          `json:"heuristic,omitempty"`
}

func parseModeTypes(names []string) (model.ModeTypeSet, error) {
	var set model.ModeTypeSet
	for _, n := range names {
		t, err := model.ParseModeType(n)
		if err != nil {
			return 0, badRequest("%v", err)
		}
		set = set.With(t)
	}
	return set, nil
}

// Request converts the wire form into a session request.
func (r SearchRequest) Request(completion float64) (session.Request, error) {
	if strings.TrimSpace(r.Caller) == "" {
		return session.Request{}, badRequest("caller is required")
	}
	g, err := r.Goal.Goal(completion)
	if err != nil {
		return session.Request{}, err
	}
	set, err := parseModeTypes(r.Modes)
	if err != nil {
		return session.Request{}, err
	}
	modes, err := mode.ForTypes(set)
	if err != nil {
		return session.Request{}, badRequest("%v", err)
	}
	portModes, err := parseModeTypes(r.PortModes)
	if err != nil {
		return session.Request{}, err
	}
	req := session.Request{
		Caller:    r.Caller,
		Origin:    r.Origin.Model(),
		Goal:      g,
		Modes:     modes,
		Flags:     flags.New(r.Flags),
		PortModes: portModes,
	}
	if r.Heuristic != "" {
		h, err := trial.ParseHeuristic(r.Heuristic)
		if err != nil {
			return session.Request{}, badRequest("%v", err)
		}
		req.Heuristic = &h
	}
	return req, nil
}

// SearchStatus is the state of a caller's latest session.
type SearchStatus struct {
	SessionID string                `json:"session_id"`
	Caller    string                `json:"caller"`
	State     string                `json:"state"`
	Reason    string                `json:"reason,omitempty"`
	Error     string                `json:"error,omitempty"`
	Goal      string                `json:"goal"`
	Modes     string                `json:"modes"`
	LegsDone  int                   `json:"legs_done"`
	LegsTotal int                   `json:"legs_total"`
	Steps     int                   `json:"steps"`
	ElapsedMS int64                 `json:"elapsed_ms"`
	Itinerary *events.ItineraryJSON `json:"itinerary,omitempty"`
	Journey   *JourneyStatus        `json:"journey,omitempty"`
}

func statusOf(s *session.Session, j *journey.Journey, withSteps bool) SearchStatus {
	done, total, steps := s.Progress()
	st := SearchStatus{
		SessionID: s.ID(),
		Caller:    s.Caller(),
		State:     s.State().String(),
		Reason:    string(s.Reason()),
		Goal:      s.Goal().Key(),
		Modes:     s.Modes().String(),
		LegsDone:  done,
		LegsTotal: total,
		Steps:     steps,
		ElapsedMS: s.Elapsed().Milliseconds(),
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	if it := s.Itinerary(); it != nil {
		sum := events.Summarize(it, withSteps)
		st.Itinerary = &sum
	}
	if j != nil && j.Itinerary() == s.Itinerary() {
		js := journeyStatus(s.Caller(), j)
		st.Journey = &js
	}
	return st
}

type LocationJSON struct {
	Domain string  `json:"domain"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

func (l LocationJSON) Model() model.Location {
	return model.Location{Domain: model.DomainID(l.Domain), X: l.X, Y: l.Y, Z: l.Z}
}

type WaypointJSON struct {
	Location LocationJSON `json:"location"`
	Leg      int          `json:"leg"`
	Along    float64      `json:"along"`
}

type JourneyStatus struct {
	Caller   string         `json:"caller"`
	State    string         `json:"state"`
	Leg      int            `json:"leg"`
	Consumed float64        `json:"consumed"`
	Window   []WaypointJSON `json:"window"`
}

func journeyStatus(caller string, j *journey.Journey) JourneyStatus {
	out := JourneyStatus{Caller: caller, State: j.State().String(), Leg: j.Leg().Index, Consumed: j.Consumed()}
	wps := j.Window()
	out.Window = make([]WaypointJSON, 0, len(wps))
	for _, w := range wps {
		out.Window = append(out.Window, WaypointJSON{
			Location: LocationJSON{Domain: string(w.Location.Domain), X: w.Location.X, Y: w.Location.Y, Z: w.Location.Z},
			Leg:      w.Leg,
			Along:    w.Along,
		})
	}
	return out
}

type VisitResponse struct {
	State    string  `json:"state"`
	Leg      int     `json:"leg"`
	Advanced bool    `json:"advanced"`
	Arrived  bool    `json:"arrived"`
	Consumed float64 `json:"consumed"`
}

type PortJSON struct {
	Origin      events.CellJSON `json:"origin"`
	Destination events.CellJSON `json:"destination"`
	Mode        string          `json:"mode"`
	Cost        float64         `json:"cost"`
}

func portJSON(p model.Port) PortJSON {
	return PortJSON{Origin: events.Cell(p.Origin), Destination: events.Cell(p.Destination), Mode: p.Mode.String(), Cost: p.Cost}
}

func (p PortJSON) Port() (model.Port, error) {
	m, err := model.ParseModeType(p.Mode)
	if err != nil {
		return model.Port{}, badRequest("%v", err)
	}
	return model.Port{Origin: p.Origin.Model(), Destination: p.Destination.Model(), Mode: m, Cost: p.Cost}, nil
}
