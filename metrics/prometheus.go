package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus reports agent metrics using Prometheus primitives.
type Prometheus struct {
	registry *prometheus.Registry
	turns    *prometheus.CounterVec
	turnDur  *prometheus.HistogramVec
	steps    *prometheus.CounterVec
	stepDur  *prometheus.HistogramVec
	flushes  *prometheus.CounterVec
}

// NewPrometheus registers the scout collectors on registry. A nil registry
// gets a fresh one.
func NewPrometheus(registry *prometheus.Registry) (*Prometheus, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	p := &Prometheus{
		registry: registry,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_turns_total",
			Help: "Total number of agent turns by outcome",
		}, []string{"outcome"}),
		turnDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_turn_duration_seconds",
			Help:    "Agent turn latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_steps_total",
			Help: "Total number of model and search calls by step and status",
		}, []string{"step", "status"}),
		stepDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_step_duration_seconds",
			Help:    "Model and search call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_trace_flushes_total",
			Help: "Total trace flushes by backend and result",
		}, []string{"backend", "result"}),
	}

	for _, collector := range []prometheus.Collector{p.turns, p.turnDur, p.steps, p.stepDur, p.flushes} {
		if err := registry.Register(collector); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveTurn(outcome string, duration time.Duration) {
	p.turns.WithLabelValues(outcome).Inc()
	p.turnDur.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveStep(step, status string, duration time.Duration) {
	p.steps.WithLabelValues(step, status).Inc()
	p.stepDur.WithLabelValues(step).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveFlush(backend string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	p.flushes.WithLabelValues(backend, result).Inc()
}

// Registry returns the registry the collectors live on.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Recorder = (*Prometheus)(nil)
