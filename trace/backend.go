package trace

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Backend receives completed traces.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Export delivers one completed trace.
	Export(ctx context.Context, t Trace) error
}

// NopBackend discards traces.
type NopBackend struct{}

// Name returns the backend name.
func (NopBackend) Name() string { return "nop" }

// Export does nothing.
func (NopBackend) Export(context.Context, Trace) error { return nil }

// MultiBackend fans a trace out to several backends. Every backend is
// attempted; failures are joined into one error.
type MultiBackend struct {
	backends []Backend
}

// NewMultiBackend creates a fan-out backend, skipping nil entries.
func NewMultiBackend(backends ...Backend) *MultiBackend {
	nonNil := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			nonNil = append(nonNil, b)
		}
	}
	return &MultiBackend{backends: nonNil}
}

// Name lists the wrapped backends.
func (m *MultiBackend) Name() string {
	names := make([]string, len(m.backends))
	for i, b := range m.backends {
		names[i] = b.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Len returns the number of wrapped backends.
func (m *MultiBackend) Len() int {
	return len(m.backends)
}

// Export sends the trace to every backend.
func (m *MultiBackend) Export(ctx context.Context, t Trace) error {
	var failed []string
	for _, b := range m.backends {
		if err := b.Export(ctx, t); err != nil {
			failed = append(failed, b.Name()+": "+err.Error())
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("%d backend(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}
