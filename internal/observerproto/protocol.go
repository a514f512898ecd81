package observerproto

// Version is the observer stream protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Empty means everything. A caller filter passes only envelopes that name
	// a caller.
	Callers []string `json:"callers,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// HTTP response for GET /v1/events/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	TickRateHz      int      `json:"tick_rate_hz"`
	Domains         []string `json:"domains"`
	EventTypes      []string `json:"event_types"`
}

// EventTypes lists every envelope type the server may send.
var EventTypes = []string{
	"search_started",
	"step_evaluated",
	"trial_resolved",
	"found_solution",
	"search_stopped",
	"journey",
	"waypoints",
}

// Server -> Client payload of a "waypoints" envelope, sent on every journey
// animation tick.
type WaypointsMsg struct {
	Caller    string     `json:"caller"`
	Waypoints []Waypoint `json:"waypoints"`
}

type Waypoint struct {
	Domain string  `json:"domain"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Leg    int     `json:"leg"`
	Along  float64 `json:"along"`
}
