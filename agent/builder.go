// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"time"

	"github.com/pkg/errors"

	"github.com/richinex/scout/metrics"
	"github.com/richinex/scout/trace"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder(modelClient, searchClient).Backend(b).Build()
type Builder struct {
	model    ModelClient
	searcher Searcher
	backend  trace.Backend
	metrics  metrics.Recorder
	config   Config
	now      func() time.Time
}

// NewBuilder starts an agent over the given model and search clients.
func NewBuilder(mc ModelClient, searcher Searcher) *Builder {
	return &Builder{
		model:    mc,
		searcher: searcher,
		config:   DefaultConfig(),
		now:      time.Now,
	}
}

// TraceName sets the trace name.
func (b *Builder) TraceName(name string) *Builder {
	b.config.TraceName = name
	return b
}

// ToolName sets the search tool name recorded in trace metadata.
func (b *Builder) ToolName(name string) *Builder {
	b.config.ToolName = name
	return b
}

// Backend sets where finished traces are exported.
func (b *Builder) Backend(backend trace.Backend) *Builder {
	b.backend = backend
	return b
}

// Metrics sets the metrics recorder.
func (b *Builder) Metrics(m metrics.Recorder) *Builder {
	b.metrics = m
	return b
}

// FlushTimeout bounds the trace export.
func (b *Builder) FlushTimeout(d time.Duration) *Builder {
	b.config.FlushTimeout = d
	return b
}

// Metadata attaches a key/value to every trace.
func (b *Builder) Metadata(key string, v any) *Builder {
	if b.config.Metadata == nil {
		b.config.Metadata = map[string]any{}
	}
	b.config.Metadata[key] = v
	return b
}

// Clock overrides the time source used for turn durations.
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build creates the agent.
func (b *Builder) Build() (*Agent, error) {
	if b.model == nil {
		return nil, errors.New("agent: model client is required")
	}
	if b.searcher == nil {
		return nil, errors.New("agent: search client is required")
	}

	backend := b.backend
	if backend == nil {
		backend = trace.NopBackend{}
	}
	m := b.metrics
	if m == nil {
		m = metrics.Nop{}
	}

	md := make(map[string]any, len(b.config.Metadata))
	for k, v := range b.config.Metadata {
		md[k] = v
	}
	cfg := b.config
	cfg.Metadata = md

	return &Agent{
		model:    b.model,
		searcher: b.searcher,
		backend:  backend,
		metrics:  m,
		config:   cfg.withDefaults(),
		now:      b.now,
	}, nil
}
