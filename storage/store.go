// Package storage provides local trace storage.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Both stores double as trace.Backend sinks

package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/richinex/scout/trace"
)

// ErrTraceNotFound is returned when a trace ID is unknown.
var ErrTraceNotFound = errors.New("trace not found")

// TraceSummary is a one-line view of a stored trace.
type TraceSummary struct {
	ID        string
	Name      string
	Status    trace.Status
	Input     string
	StartTime time.Time
	EndTime   time.Time
	SpanCount int
}

// TraceStore persists completed traces and reads them back.
type TraceStore interface {
	trace.Backend

	// LoadTrace returns a stored trace with its full span tree.
	// Returns ErrTraceNotFound for unknown IDs.
	LoadTrace(ctx context.Context, id string) (trace.Trace, error)

	// ListTraces returns the most recent traces first, at most limit.
	ListTraces(ctx context.Context, limit int) ([]TraceSummary, error)
}

func summarize(t trace.Trace) TraceSummary {
	input, _ := t.Input.(string)
	return TraceSummary{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Input:     input,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		SpanCount: len(t.Spans()),
	}
}
