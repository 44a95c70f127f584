package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrAlreadyFlushed is returned by Flush after the first call.
var ErrAlreadyFlushed = errors.New("trace already flushed")

// danglingMessage is the status message given to spans still open at flush.
const danglingMessage = "span not closed before flush"

// Recorder captures the span tree of a single turn. Create one per turn;
// it is not meant to be shared between turns.
type Recorder struct {
	mu       sync.Mutex
	traceID  string
	name     string
	backend  Backend
	now      func() time.Time
	newID    func() string
	metadata map[string]any
	root     *Span
	stack    []*Span
	flushed  bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator overrides span and trace ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Recorder) { r.newID = newID }
}

// WithTraceMetadata seeds trace-level metadata.
func WithTraceMetadata(md map[string]any) Option {
	return func(r *Recorder) {
		for k, v := range md {
			r.metadata[k] = v
		}
	}
}

// NewRecorder creates a recorder for one trace exported to backend.
// A nil backend discards the trace on flush.
func NewRecorder(name string, backend Backend, opts ...Option) *Recorder {
	r := &Recorder{
		name:     name,
		backend:  backend,
		now:      time.Now,
		newID:    uuid.NewString,
		metadata: make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		r.backend = NopBackend{}
	}
	r.traceID = r.newID()
	return r
}

// TraceID returns the identifier of the trace being recorded.
func (r *Recorder) TraceID() string {
	return r.traceID
}

// SetMetadata attaches trace-level metadata.
func (r *Recorder) SetMetadata(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = v
}

// StartSpan opens a span. Whichever span is open on top of the stack
// becomes its parent; the first span of the trace becomes the root.
func (r *Recorder) StartSpan(name string, kind Kind, input any) *Span {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := &Span{
		ID:        r.newID(),
		TraceID:   r.traceID,
		Name:      name,
		Kind:      kind,
		StartTime: r.now(),
		Input:     input,
		recorder:  r,
	}

	var parent *Span
	if n := len(r.stack); n > 0 {
		parent = r.stack[n-1]
	} else if r.root != nil {
		parent = r.root
	}

	if parent == nil {
		r.root = span
	} else {
		span.ParentID = parent.ID
		parent.Children = append(parent.Children, span)
	}
	r.stack = append(r.stack, span)
	return span
}

// EndSpan closes a span with its output and status. Ending an already
// closed span is a no-op.
func (r *Recorder) EndSpan(span *Span, output any, status Status, message string) {
	if span == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked(span, output, status, message)
}

func (r *Recorder) endLocked(span *Span, output any, status Status, message string) {
	if span.ended {
		return
	}
	span.EndTime = r.now()
	if !span.outputSet {
		span.Output = output
	}
	span.Status = status
	span.StatusMessage = message
	span.ended = true

	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == span {
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			break
		}
	}
}

// OpenSpans returns how many spans are still open.
func (r *Recorder) OpenSpans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Trace builds the current span tree. Open spans are reported as-is.
func (r *Recorder) Trace() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildLocked()
}

func (r *Recorder) buildLocked() Trace {
	md := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		md[k] = v
	}
	t := Trace{
		ID:       r.traceID,
		Name:     r.name,
		Metadata: md,
		Root:     r.root,
	}
	if r.root != nil {
		t.Input = r.root.Input
		t.Output = r.root.Output
		t.Status = r.root.Status
		t.StartTime = r.root.StartTime
		t.EndTime = r.root.EndTime
	}
	return t
}

// Flush closes any dangling spans with an error status and sends the tree
// to the backend. It runs at most once per recorder.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.flushed {
		r.mu.Unlock()
		return ErrAlreadyFlushed
	}
	r.flushed = true
	for len(r.stack) > 0 {
		r.endLocked(r.stack[len(r.stack)-1], nil, StatusError, danglingMessage)
	}
	t := r.buildLocked()
	r.mu.Unlock()

	if err := r.backend.Export(ctx, t); err != nil {
		return errors.Wrapf(err, "export trace %s", t.ID)
	}
	return nil
}

type recorderKey struct{}

// WithRecorder returns a context carrying the recorder.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// FromContext returns the recorder carried by ctx, or nil.
func FromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

// Observe wraps fn in a span on the recorder carried by ctx. The span is
// closed on every exit path: with the result on success, with an error
// status when fn fails or panics. Without a recorder fn runs untraced and
// receives a nil span.
func Observe[T any](ctx context.Context, name string, kind Kind, input any, fn func(context.Context, *Span) (T, error)) (out T, err error) {
	r := FromContext(ctx)
	if r == nil {
		return fn(ctx, nil)
	}

	span := r.StartSpan(name, kind, input)
	defer func() {
		if p := recover(); p != nil {
			r.EndSpan(span, nil, StatusError, fmt.Sprintf("panic: %v", p))
			panic(p)
		}
	}()

	out, err = fn(ctx, span)
	if err != nil {
		r.EndSpan(span, nil, StatusError, err.Error())
		return out, err
	}
	r.EndSpan(span, out, StatusOK, "")
	return out, nil
}
