// In-memory trace store.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral processes

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/richinex/scout/trace"
)

// MemoryStore implements TraceStore using an in-memory map.
// Data is lost when process terminates.
type MemoryStore struct {
	mu     sync.RWMutex
	traces map[string]trace.Trace
	order  []string
}

// NewMemoryStore creates a new in-memory trace store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces: make(map[string]trace.Trace),
	}
}

// Name returns the backend name.
func (s *MemoryStore) Name() string { return "memory" }

// Export stores the trace, replacing any previous trace with the same ID.
func (s *MemoryStore) Export(ctx context.Context, t trace.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.traces[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.traces[t.ID] = t
	return nil
}

// LoadTrace returns a stored trace.
func (s *MemoryStore) LoadTrace(ctx context.Context, id string) (trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.traces[id]
	if !ok {
		return trace.Trace{}, ErrTraceNotFound
	}
	return t, nil
}

// ListTraces returns the newest traces first.
func (s *MemoryStore) ListTraces(ctx context.Context, limit int) ([]TraceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TraceSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, summarize(s.traces[s.order[i]]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Traces returns every stored trace in export order.
func (s *MemoryStore) Traces() []trace.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]trace.Trace, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.traces[id])
	}
	return out
}

// Len returns the number of stored traces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.traces)
}

var _ TraceStore = (*MemoryStore)(nil)
