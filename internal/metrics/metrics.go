// Package metrics exposes Prometheus counters for the triage loop.
//
// Every method is safe on a nil *Metrics so callers need no guards when
// metrics are disabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/sieve/internal/candidate"
)

// Resolution outcomes.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors and the registry they are registered on.
//
// Metrics:
//   - sieve_messages_classified_total{verdict} - important or ignored
//   - sieve_candidates_resolved_total{outcome} - created, skipped or failed
//   - sieve_flushes_total{result} - ok or error
//   - sieve_poll_errors_total - failed getUpdates calls
//   - sieve_candidates{status} - store contents at the last flush
type Metrics struct {
	registry *prometheus.Registry

	MessagesClassified *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	Flushes            *prometheus.CounterVec
	PollErrors         prometheus.Counter
	Candidates         *prometheus.GaugeVec
}

// New creates metrics on a private registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		MessagesClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sieve_messages_classified_total",
				Help: "Messages seen by the classifier",
			},
			[]string{"verdict"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sieve_candidates_resolved_total",
				Help: "Owner actions on candidates by outcome",
			},
			[]string{"outcome"},
		),
		Flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sieve_flushes_total",
				Help: "Snapshot writes to the variable store",
			},
			[]string{"result"},
		),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_poll_errors_total",
			Help: "Failed update polls",
		}),
		Candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sieve_candidates",
				Help: "Candidates in the store by status",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.MessagesClassified, m.Resolutions, m.Flushes, m.PollErrors, m.Candidates)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveMessage(important bool) {
	if m == nil {
		return
	}
	verdict := "ignored"
	if important {
		verdict = "important"
	}
	m.MessagesClassified.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFlush(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Flushes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePollError() {
	if m == nil {
		return
	}
	m.PollErrors.Inc()
}

// SetCandidates records per-status store totals.
func (m *Metrics) SetCandidates(counts map[candidate.Status]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.Candidates.WithLabelValues(string(status)).Set(float64(n))
	}
}
