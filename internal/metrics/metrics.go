// Package metrics exposes search and journey counters to Prometheus. The
// collectors are fed from an events.Sink.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whimxiqal/journey-sub005/internal/events"
)

type Metrics struct {
	reg *prometheus.Registry

	sessionsStarted prometheus.Counter
	sessionsStopped *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	trials          *prometheus.CounterVec
	trialSteps      prometheus.Histogram
	steps           *prometheus.CounterVec
	journeys        *prometheus.CounterVec

	withSteps bool
}

// New registers collectors on a fresh registry. withSteps enables the
// per-step counter, which makes every expansion emit an event.
func New(withSteps bool) *Metrics {
	m := &Metrics{
		reg:       prometheus.NewRegistry(),
		withSteps: withSteps,
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journey_sessions_started_total",
			Help: "Search sessions that began running.",
		}),
		sessionsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_sessions_stopped_total",
			Help: "Search sessions that reached a terminal state.",
		}, []string{"state", "reason"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journey_session_duration_seconds",
			Help:    "Wall time from first search step to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_trials_total",
			Help: "Resolved domain-local trials.",
		}, []string{"source", "success"}),
		trialSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journey_trial_steps",
			Help:    "Frontier expansions per searched trial.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_steps_evaluated_total",
			Help: "Proposed edges by mode and whether they improved the frontier.",
		}, []string{"mode", "accepted"}),
		journeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_traversal_updates_total",
			Help: "Journey state transitions.",
		}, []string{"state"}),
	}
	m.reg.MustRegister(
		m.sessionsStarted,
		m.sessionsStopped,
		m.sessionDuration,
		m.trials,
		m.trialSteps,
		m.steps,
		m.journeys,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Sink records events into the collectors.
func (m *Metrics) Sink() events.Sink {
	s := events.Sink{
		SearchStartedFn: func(events.SearchStarted) { m.sessionsStarted.Inc() },
		SearchStoppedFn: func(e events.SearchStopped) {
			m.sessionsStopped.WithLabelValues(e.State, e.Reason).Inc()
			if e.Elapsed > 0 {
				m.sessionDuration.Observe(e.Elapsed.Seconds())
			}
		},
		TrialResolvedFn: func(e events.TrialResolved) {
			source := "searched"
			if e.Cached {
				source = "cached"
			} else {
				m.trialSteps.Observe(float64(e.Steps))
			}
			m.trials.WithLabelValues(source, strconv.FormatBool(e.Success)).Inc()
		},
		JourneyFn: func(e events.JourneyUpdate) {
			state := e.State
			switch {
			case e.Arrived:
				state = "arrived"
			case e.Advanced:
				state = "advanced"
			}
			m.journeys.WithLabelValues(state).Inc()
		},
	}
	if m.withSteps {
		s.StepEvaluatedFn = func(e events.StepEvaluated) {
			m.steps.WithLabelValues(e.Mode.String(), strconv.FormatBool(e.Accepted)).Inc()
		}
	}
	return s
}
