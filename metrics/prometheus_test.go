package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounters(t *testing.T) {
	p, err := NewPrometheus(nil)
	require.NoError(t, err)

	p.ObserveTurn("searched", 2*time.Second)
	p.ObserveTurn("searched", time.Second)
	p.ObserveTurn("errored", time.Second)
	p.ObserveStep("search", "ok", 300*time.Millisecond)
	p.ObserveStep("decide", "timeout", 30*time.Second)
	p.ObserveFlush("langfuse", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.turns.WithLabelValues("searched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.turns.WithLabelValues("errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.steps.WithLabelValues("decide", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.flushes.WithLabelValues("langfuse", "error")))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)
	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestPrometheusHandler(t *testing.T) {
	p, err := NewPrometheus(nil)
	require.NoError(t, err)
	p.ObserveTurn("answered", time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scout_turns_total{outcome="answered"} 1`)
}
