package observer

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/journey"
	"github.com/whimxiqal/journey-sub005/internal/observerproto"
)

// Hub fans encoded event envelopes out to websocket subscribers. Slow
// subscribers lose messages rather than stall the publisher.
type Hub struct {
	log    *log.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID atomic.Uint64

	dropped atomic.Uint64
}

type subscriber struct {
	out chan []byte

	mu     sync.RWMutex
	filter filter
}

type filter struct {
	callers map[string]bool
	types   map[string]bool
}

func newFilter(sub observerproto.SubscribeMsg) filter {
	var f filter
	if len(sub.Callers) > 0 {
		f.callers = make(map[string]bool, len(sub.Callers))
		for _, c := range sub.Callers {
			f.callers[c] = true
		}
	}
	if len(sub.Types) > 0 {
		f.types = make(map[string]bool, len(sub.Types))
		for _, t := range sub.Types {
			f.types[t] = true
		}
	}
	return f
}

func (f filter) pass(kind, caller string) bool {
	if f.types != nil && !f.types[kind] {
		return false
	}
	if f.callers != nil && !f.callers[caller] {
		return false
	}
	return true
}

func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{log: logger, buffer: buffer, subs: map[uint64]*subscriber{}}
}

// Sink publishes every event to the hub.
func (h *Hub) Sink(withSteps bool) events.Sink {
	return events.JSON(h.Publish, withSteps)
}

// Publish delivers one encoded envelope.
func (h *Hub) Publish(b []byte) {
	var head struct {
		Type string `json:"type"`
		Data struct {
			Caller string `json:"caller"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		h.log.Printf("observer: drop undecodable envelope: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.mu.RLock()
		ok := s.filter.pass(head.Type, head.Data.Caller)
		s.mu.RUnlock()
		if !ok {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// PublishWaypoints sends a journey animation frame.
func (h *Hub) PublishWaypoints(caller string, wps []journey.Waypoint) {
	msg := observerproto.WaypointsMsg{Caller: caller, Waypoints: make([]observerproto.Waypoint, 0, len(wps))}
	for _, w := range wps {
		msg.Waypoints = append(msg.Waypoints, observerproto.Waypoint{
			Domain: string(w.Location.Domain),
			X:      w.Location.X,
			Y:      w.Location.Y,
			Z:      w.Location.Z,
			Leg:    w.Leg,
			Along:  w.Along,
		})
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b, err := json.Marshal(events.Envelope{Type: "waypoints", At: time.Now().UTC().Format(time.RFC3339Nano), Data: data})
	if err != nil {
		return
	}
	h.Publish(b)
}

func (h *Hub) join(f filter) (uint64, *subscriber) {
	id := h.nextID.Add(1)
	s := &subscriber{out: make(chan []byte, h.buffer), filter: f}
	h.mu.Lock()
	h.subs[id] = s
	h.mu.Unlock()
	return id, s
}

func (h *Hub) leave(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (s *subscriber) resubscribe(f filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts messages lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
