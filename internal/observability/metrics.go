package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeHandled    = "handled"
	OutcomeUnrouted   = "unrouted"
	OutcomeOutOfScope = "out_of_scope"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomePanicked   = "panicked"
	OutcomeDuplicate  = "duplicate"
	OutcomeIgnored    = "ignored"
)

// Metrics collects dispatch and session metrics. All methods are safe on a
// nil receiver.
type Metrics struct {
	// DispatchCounter counts routed events.
	// Labels: router (command|component|inline|event), outcome
	DispatchCounter *prometheus.CounterVec

	// HandlerDuration measures handler execution time in seconds.
	// Labels: router, handler
	HandlerDuration *prometheus.HistogramVec

	// LookupFailures counts directory lookups that failed during parameter
	// resolution. Labels: entity (channel|clan|user|message|roles)
	LookupFailures *prometheus.CounterVec

	// SessionState is 1 for the current session state and 0 for the others.
	// Labels: state
	SessionState *prometheus.GaugeVec

	// LoginAttempts counts transport connect attempts.
	// Labels: result (success|error)
	LoginAttempts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors on reg. A nil reg uses a fresh
// registry so repeated construction in tests does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		DispatchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botkit_dispatch_total",
				Help: "Inbound events by router and outcome",
			},
			[]string{"router", "outcome"},
		),

		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botkit_handler_duration_seconds",
				Help:    "Duration of handler invocations in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"router", "handler"},
		),

		LookupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botkit_lookup_failures_total",
				Help: "Directory lookups that failed during parameter resolution",
			},
			[]string{"entity"},
		),

		SessionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "botkit_session_state",
				Help: "Current session state (1 for the active state)",
			},
			[]string{"state"},
		),

		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botkit_login_attempts_total",
				Help: "Transport connect attempts by result",
			},
			[]string{"result"},
		),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RecordDispatch counts one routed event.
func (m *Metrics) RecordDispatch(router, outcome string) {
	if m == nil {
		return
	}
	m.DispatchCounter.WithLabelValues(router, outcome).Inc()
}

// ObserveHandler records the run time of one handler.
func (m *Metrics) ObserveHandler(router, handler string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(router, handler).Observe(d.Seconds())
}

// RecordLookupFailure counts a failed directory lookup.
func (m *Metrics) RecordLookupFailure(entity string) {
	if m == nil {
		return
	}
	m.LookupFailures.WithLabelValues(entity).Inc()
}

// SetSessionState marks state as current, zeroing every state in known.
func (m *Metrics) SetSessionState(state string, known ...string) {
	if m == nil {
		return
	}
	for _, s := range known {
		m.SessionState.WithLabelValues(s).Set(0)
	}
	m.SessionState.WithLabelValues(state).Set(1)
}

// RecordLogin counts a connect attempt.
func (m *Metrics) RecordLogin(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// Handler serves the registry the metrics were registered on, or the
// default gatherer when that registry cannot be gathered.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
