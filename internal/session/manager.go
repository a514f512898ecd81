package session

import (
	"sort"
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/journey"
)

// Manager keeps at most one live session and one journey per caller. A new
// registration supersedes the old one, which is cancelled or stopped first.
type Manager struct {
	env Env

	mu       sync.Mutex
	sessions map[string]*Session
	journeys map[string]*journey.Journey
}

func NewManager(env Env) *Manager {
	return &Manager{
		env:      env,
		sessions: map[string]*Session{},
		journeys: map[string]*journey.Journey{},
	}
}

func (m *Manager) Env() Env { return m.env }

// Start builds a session for req and registers it under req.Caller.
func (m *Manager) Start(req Request) (*Session, error) {
	s, err := New(m.env, req)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	old := m.sessions[req.Caller]
	m.sessions[req.Caller] = s
	m.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
	return s, nil
}

func (m *Manager) Get(caller string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[caller]
	return s, ok
}

// Cancel requests cancellation of the caller's session. The session stays
// registered so its final state can still be read.
func (m *Manager) Cancel(caller string) bool {
	s, ok := m.Get(caller)
	if ok {
		s.Cancel()
	}
	return ok
}

// Forget cancels and drops the caller's session and journey.
func (m *Manager) Forget(caller string) {
	m.mu.Lock()
	s := m.sessions[caller]
	j := m.journeys[caller]
	delete(m.sessions, caller)
	delete(m.journeys, caller)
	m.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
	if j != nil {
		j.Stop()
	}
}

// Sessions lists registered sessions ordered by caller.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Caller() < out[j].Caller() })
	return out
}

// SetJourney registers j for caller, stopping any journey it replaces.
func (m *Manager) SetJourney(caller string, j *journey.Journey) {
	m.mu.Lock()
	old := m.journeys[caller]
	m.journeys[caller] = j
	m.mu.Unlock()
	if old != nil && old != j {
		old.Stop()
	}
}

func (m *Manager) Journey(caller string) (*journey.Journey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.journeys[caller]
	return j, ok
}
