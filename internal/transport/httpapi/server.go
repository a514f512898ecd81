// Package httpapi serves search sessions, journeys and the port store over
// HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/whimxiqal/journey-sub005/internal/journey"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/sched"
	"github.com/whimxiqal/journey-sub005/internal/session"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

const maxBody = 1 << 20

type Options struct {
	// StepsPerTick bounds the search work done per scheduler tick.
	StepsPerTick int
	// Async runs search ticks off the scheduler goroutine.
	Async bool
	// CompletionDistance (squared) applies to exact-destination goals.
	CompletionDistance float64
	Journey            journey.Options
	AnimatePeriodTicks uint64
}

type Server struct {
	manager *session.Manager
	ports   ports.Store
	sched   sched.Scheduler
	opts    Options
	log     *log.Logger

	// Waypoints receives journey animation frames. Optional.
	Waypoints func(caller string, wps []journey.Waypoint)
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Events and EventsBootstrap are mounted under /v1/events when set.
	Events          http.Handler
	EventsBootstrap http.Handler
}

func NewServer(m *session.Manager, store ports.Store, sc sched.Scheduler, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.AnimatePeriodTicks == 0 {
		opts.AnimatePeriodTicks = 1
	}
	return &Server{manager: m, ports: store, sched: sc, opts: opts, log: logger}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Post("/searches", s.startSearch)
		r.Get("/searches", s.listSearches)
		r.Get("/searches/{caller}", s.getSearch)
		r.Delete("/searches/{caller}", s.cancelSearch)

		r.Get("/journeys/{caller}", s.getJourney)
		r.Post("/journeys/{caller}/visit", s.visit)
		r.Delete("/journeys/{caller}", s.stopJourney)

		r.Get("/ports", s.listPorts)
		r.Post("/ports", s.addPort)
		r.Delete("/ports", s.removePort)

		if s.Events != nil {
			r.Get("/events", s.Events.ServeHTTP)
		}
		if s.EventsBootstrap != nil {
			r.Get("/events/bootstrap", s.EventsBootstrap.ServeHTTP)
		}
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps request-building and store errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, trial.ErrNoModes),
		errors.Is(err, trial.ErrNoGoal),
		errors.Is(err, ports.ErrSameDomain):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func (s *Server) startSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := body.Request(s.opts.CompletionDistance)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess, err := s.manager.Start(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.Printf("search %s for %s: %s -> %s", sess.ID(), sess.Caller(), sess.Origin(), sess.Goal().Key())
	session.Drive(s.sched, sess, s.opts.StepsPerTick, s.opts.Async, s.searchDone)
	writeJSON(w, http.StatusAccepted, statusOf(sess, nil, false))
}

// searchDone starts a journey for a successful search that is still the
// caller's current one.
func (s *Server) searchDone(sess *session.Session) {
	if cur, ok := s.manager.Get(sess.Caller()); !ok || cur != sess {
		return
	}
	it := sess.Itinerary()
	if sess.State() != session.StoppedSuccessful || it == nil {
		return
	}
	opts := s.opts.Journey
	opts.Caller = sess.Caller()
	opts.Events = s.manager.Env().Events
	j := journey.New(it, opts)
	j.Run()
	s.manager.SetJourney(sess.Caller(), j)
	if s.Waypoints != nil {
		caller := sess.Caller()
		journey.Animate(s.sched, j, s.opts.AnimatePeriodTicks, func(wps []journey.Waypoint) {
			s.Waypoints(caller, wps)
		})
	}
}

func (s *Server) listSearches(w http.ResponseWriter, r *http.Request) {
	out := []SearchStatus{}
	for _, sess := range s.manager.Sessions() {
		out = append(out, statusOf(sess, nil, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSearch(w http.ResponseWriter, r *http.Request) {
	caller := chi.URLParam(r, "caller")
	sess, ok := s.manager.Get(caller)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no search for caller"))
		return
	}
	j, _ := s.manager.Journey(caller)
	withSteps := r.URL.Query().Get("steps") == "true"
	writeJSON(w, http.StatusOK, statusOf(sess, j, withSteps))
}

// cancelSearch cancels the caller's search. With ?forget=true the session and
// journey are dropped as well.
func (s *Server) cancelSearch(w http.ResponseWriter, r *http.Request) {
	caller := chi.URLParam(r, "caller")
	sess, ok := s.manager.Get(caller)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no search for caller"))
		return
	}
	if r.URL.Query().Get("forget") == "true" {
		s.manager.Forget(caller)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.manager.Cancel(caller)
	writeJSON(w, http.StatusAccepted, statusOf(sess, nil, false))
}

func (s *Server) lookupJourney(w http.ResponseWriter, r *http.Request) (string, *journey.Journey, bool) {
	caller := chi.URLParam(r, "caller")
	j, ok := s.manager.Journey(caller)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no journey for caller"))
		return caller, nil, false
	}
	return caller, j, true
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request) {
	caller, j, ok := s.lookupJourney(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, journeyStatus(caller, j))
}

func (s *Server) visit(w http.ResponseWriter, r *http.Request) {
	_, j, ok := s.lookupJourney(w, r)
	if !ok {
		return
	}
	var loc LocationJSON
	if err := decode(r, &loc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(loc.Domain) == "" {
		writeError(w, http.StatusBadRequest, badRequest("domain is required"))
		return
	}
	v := j.Visit(loc.Model())
	writeJSON(w, http.StatusOK, VisitResponse{
		State:    v.State.String(),
		Leg:      v.Leg,
		Advanced: v.Advanced,
		Arrived:  v.Arrived,
		Consumed: v.Consumed,
	})
}

func (s *Server) stopJourney(w http.ResponseWriter, r *http.Request) {
	caller, j, ok := s.lookupJourney(w, r)
	if !ok {
		return
	}
	j.Stop()
	writeJSON(w, http.StatusOK, journeyStatus(caller, j))
}

func (s *Server) listPorts(w http.ResponseWriter, r *http.Request) {
	var modes model.ModeTypeSet
	if raw := r.URL.Query().Get("modes"); raw != "" {
		var err error
		if modes, err = parseModeTypes(strings.Split(raw, ",")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	all, err := s.ports.All(r.Context(), modes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]PortJSON, 0, len(all))
	for _, p := range all {
		out = append(out, portJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addPort(w http.ResponseWriter, r *http.Request) {
	var body PortJSON
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := body.Port()
	if err == nil {
		err = ports.Check(p)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ports.Add(r.Context(), p); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.Printf("port added: %s", p)
	writeJSON(w, http.StatusCreated, portJSON(p))
}

func (s *Server) removePort(w http.ResponseWriter, r *http.Request) {
	var body PortJSON
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := body.Port()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	removed, err := s.ports.Remove(r.Context(), p.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, errors.New("no such port"))
		return
	}
	s.log.Printf("port removed: %s", p)
	w.WriteHeader(http.StatusNoContent)
}
