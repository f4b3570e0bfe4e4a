package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sieve/internal/candidate"
)

// value returns the sample of name whose labels include label=want.
func value(t *testing.T, m *Metrics, name, label, want string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == want {
					if metric.GetCounter() != nil {
						return metric.GetCounter().GetValue()
					}
					return metric.GetGauge().GetValue()
				}
			}
			if label == "" && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveMessage(true)
	m.ObserveMessage(true)
	m.ObserveMessage(false)
	m.ObserveResolution(OutcomeCreated)
	m.ObserveFlush(nil)
	m.ObserveFlush(errors.New("railway down"))
	m.ObservePollError()
	m.SetCandidates(map[candidate.Status]int{candidate.StatusDrafted: 4, candidate.StatusCreated: 1})

	require.Equal(t, 2.0, value(t, m, "sieve_messages_classified_total", "verdict", "important"))
	require.Equal(t, 1.0, value(t, m, "sieve_messages_classified_total", "verdict", "ignored"))
	require.Equal(t, 1.0, value(t, m, "sieve_candidates_resolved_total", "outcome", OutcomeCreated))
	require.Equal(t, 1.0, value(t, m, "sieve_flushes_total", "result", "error"))
	require.Equal(t, 1.0, value(t, m, "sieve_poll_errors_total", "", ""))
	require.Equal(t, 4.0, value(t, m, "sieve_candidates", "status", "drafted"))
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMessage(true)
	m.ObserveResolution(OutcomeSkipped)
	m.ObserveFlush(nil)
	m.ObservePollError()
	m.SetCandidates(nil)
	require.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 404, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveResolution(OutcomeSkipped)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `sieve_candidates_resolved_total{outcome="skipped"} 1`))
}
