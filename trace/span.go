// Package trace records a hierarchical span tree for one agent turn and
// exports it to an observability backend.
//
// Information Hiding:
// - Span nesting (parent selection by call order) hidden in Recorder
// - Backend wire formats hidden behind the Backend interface
// - Guaranteed span closure hidden in Observe
package trace

import "time"

// Status is the outcome recorded on a closed span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Kind describes what a span represents.
type Kind string

const (
	// KindAgent is the root span of a turn.
	KindAgent Kind = "agent"
	// KindGeneration is a model call.
	KindGeneration Kind = "generation"
	// KindTool is an external tool call such as web search.
	KindTool Kind = "tool"
	// KindSpan is any other timed operation.
	KindSpan Kind = "span"
)

// Span is a timed, named record of one operation. Spans are append-only
// once ended: later updates are ignored.
type Span struct {
	ID            string         `json:"id"`
	TraceID       string         `json:"trace_id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Name          string         `json:"name"`
	Kind          Kind           `json:"kind"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Input         any            `json:"input,omitempty"`
	Output        any            `json:"output,omitempty"`
	Status        Status         `json:"status"`
	StatusMessage string         `json:"status_message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Children      []*Span        `json:"children,omitempty"`

	recorder  *Recorder
	ended     bool
	outputSet bool
}

// Ended reports whether the span has been closed.
func (s *Span) Ended() bool {
	if s == nil {
		return false
	}
	if s.recorder != nil {
		s.recorder.mu.Lock()
		defer s.recorder.mu.Unlock()
	}
	return s.ended
}

// Duration returns the span's elapsed time, or zero while it is open.
func (s *Span) Duration() time.Duration {
	if s == nil || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SetOutput records the span output ahead of closing it. The value takes
// precedence over the output passed when the span ends. Safe on a nil span.
func (s *Span) SetOutput(v any) {
	if s == nil {
		return
	}
	s.lock()
	defer s.unlock()
	if s.ended {
		return
	}
	s.Output = v
	s.outputSet = true
}

// SetMetadata attaches a key/value to the span. Safe on a nil span.
func (s *Span) SetMetadata(key string, v any) {
	if s == nil {
		return
	}
	s.lock()
	defer s.unlock()
	if s.ended {
		return
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = v
}

func (s *Span) lock() {
	if s.recorder != nil {
		s.recorder.mu.Lock()
	}
}

func (s *Span) unlock() {
	if s.recorder != nil {
		s.recorder.mu.Unlock()
	}
}

// Walk visits the span and its descendants depth-first, pre-order.
func (s *Span) Walk(fn func(span *Span, depth int)) {
	s.walk(fn, 0)
}

func (s *Span) walk(fn func(*Span, int), depth int) {
	if s == nil {
		return
	}
	fn(s, depth)
	for _, c := range s.Children {
		c.walk(fn, depth+1)
	}
}

// Trace is the completed span tree of one turn.
type Trace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Status    Status         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Root      *Span          `json:"root,omitempty"`
}

// Spans returns every span in the tree in pre-order.
func (t Trace) Spans() []*Span {
	var out []*Span
	t.Root.Walk(func(s *Span, _ int) {
		out = append(out, s)
	})
	return out
}

// CountStatus returns how many spans in the tree carry the given status.
func (t Trace) CountStatus(status Status) int {
	n := 0
	t.Root.Walk(func(s *Span, _ int) {
		if s.Status == status {
			n++
		}
	})
	return n
}
