// Single-turn search agent.
//
// One turn runs Start -> Deciding -> {Answering | Searching -> Synthesizing}
// -> Done, or ends in Errored from any non-terminal state.
//
// Information Hiding:
// - Turn state machine hidden
// - Per-turn trace recorder creation and flushing hidden
// - Metrics and logging of each step hidden

package agent

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/richinex/scout/metrics"
	"github.com/richinex/scout/model"
	"github.com/richinex/scout/trace"
)

// ModelClient makes the two model calls of a turn.
type ModelClient interface {
	Decide(ctx context.Context, query model.Query) (model.Decision, error)
	Synthesize(ctx context.Context, query model.Query, results model.Results) (model.Answer, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, terms string) (model.Results, error)
}

// Agent answers one query per Run. It keeps no per-turn state, so
// concurrent Run calls are independent.
type Agent struct {
	model    ModelClient
	searcher Searcher
	backend  trace.Backend
	metrics  metrics.Recorder
	config   Config
	now      func() time.Time
}

// New creates an agent with default configuration.
func New(mc ModelClient, searcher Searcher, backend trace.Backend) (*Agent, error) {
	return NewBuilder(mc, searcher).Backend(backend).Build()
}

// Config returns the agent configuration.
func (a *Agent) Config() Config {
	return a.config
}

// turn carries the mutable state of one Run.
type turn struct {
	agent    *Agent
	recorder *trace.Recorder
	query    model.Query
	state    State
	result   Result
}

// Run executes one turn. On failure it returns the partial Result (with
// the trace ID) and an *OrchestrationError. The turn's trace is flushed
// exactly once before Run returns, whatever the outcome.
func (a *Agent) Run(ctx context.Context, query model.Query) (Result, error) {
	start := a.now()
	rec := trace.NewRecorder(a.config.TraceName, a.backend, trace.WithTraceMetadata(a.config.Metadata))
	t := &turn{
		agent:    a,
		recorder: rec,
		query:    query,
		state:    StateStart,
		result:   Result{TraceID: rec.TraceID()},
	}

	root := rec.StartSpan(rootSpanName, trace.KindAgent, query.String())
	answer, err := t.run(trace.WithRecorder(ctx, rec))
	if err != nil {
		rec.EndSpan(root, nil, trace.StatusError, err.Error())
	} else {
		rec.EndSpan(root, answer.String(), trace.StatusOK, "")
	}

	t.result.Duration = a.now().Sub(start)
	t.annotate()
	a.flush(ctx, rec)
	a.metrics.ObserveTurn(t.outcome(), t.result.Duration)

	logger := log.With().
		Str("trace_id", t.result.TraceID).
		Str("state", t.state.String()).
		Bool("searched", t.result.Searched).
		Dur("duration", t.result.Duration).
		Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("turn failed")
		return t.result, err
	}
	logger.Info().Msg("turn completed")
	return t.result, nil
}

func (t *turn) run(ctx context.Context) (model.Answer, error) {
	if t.query.Blank() {
		return "", t.fail(ErrEmptyQuery)
	}

	t.transition(StateDeciding)
	decision, err := observeStep(t, "decide", func() (model.Decision, error) {
		return t.agent.model.Decide(ctx, t.query)
	})
	if err != nil {
		return "", t.fail(err)
	}

	switch decision.Kind {
	case model.DecisionDirectAnswer:
		t.transition(StateAnswering)
		t.result.Answer = model.Answer(decision.Text)
		t.transition(StateDone)
		return t.result.Answer, nil

	case model.DecisionSearch:
		t.transition(StateSearching)
		t.result.Searched = true
		t.result.SearchTerms = decision.SearchTerms
		results, err := observeStep(t, "search", func() (model.Results, error) {
			return t.agent.searcher.Search(ctx, decision.SearchTerms)
		})
		if err != nil {
			return "", t.fail(err)
		}
		t.result.Results = results

		t.transition(StateSynthesizing)
		answer, err := observeStep(t, "synthesize", func() (model.Answer, error) {
			return t.agent.model.Synthesize(ctx, t.query, results)
		})
		if err != nil {
			return "", t.fail(err)
		}
		t.result.Answer = answer
		t.transition(StateDone)
		return answer, nil

	default:
		return "", t.fail(errors.Errorf("unknown decision kind %d", decision.Kind))
	}
}

// transition moves the state machine forward. An illegal move is a
// programming error.
func (t *turn) transition(next State) {
	if !CanTransition(t.state, next) {
		panic(errors.Errorf("agent: illegal transition %s -> %s", t.state, next))
	}
	log.Debug().
		Str("trace_id", t.result.TraceID).
		Str("from", t.state.String()).
		Str("to", next.String()).
		Msg("state transition")
	t.state = next
	t.result.State = next
}

// fail moves the turn to Errored, recording where it failed.
func (t *turn) fail(cause error) error {
	oe := &OrchestrationError{State: t.state, Err: cause}
	t.transition(StateErrored)
	return oe
}

func (t *turn) outcome() string {
	switch {
	case t.state == StateErrored:
		return "errored"
	case t.result.Searched:
		return "searched"
	default:
		return "answered"
	}
}

// annotate records turn-level metadata on the trace.
func (t *turn) annotate() {
	rec := t.recorder
	rec.SetMetadata("state", t.state.String())
	rec.SetMetadata("searched", t.result.Searched)

	var toolCalls []map[string]any
	iterations := 0
	if t.result.Searched {
		iterations = 1
		toolCalls = append(toolCalls, map[string]any{
			"function":  t.agent.config.ToolName,
			"arguments": map[string]any{"query": t.result.SearchTerms},
		})
	}
	rec.SetMetadata("tool_calls", toolCalls)
	rec.SetMetadata("iterations", iterations)
}

// flush exports the trace once. Failures are logged, never returned.
func (a *Agent) flush(ctx context.Context, rec *trace.Recorder) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.FlushTimeout)
	defer cancel()

	err := rec.Flush(ctx)
	a.metrics.ObserveFlush(a.backend.Name(), err == nil)
	if err != nil {
		log.Warn().
			Err(err).
			Str("trace_id", rec.TraceID()).
			Str("backend", a.backend.Name()).
			Msg("trace flush failed")
	}
}

// observeStep times one external call and reports it to metrics.
func observeStep[T any](t *turn, step string, fn func() (T, error)) (T, error) {
	start := t.agent.now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
		if pe, ok := model.AsProviderError(err); ok {
			status = pe.Kind.String()
		}
	}
	t.agent.metrics.ObserveStep(step, status, t.agent.now().Sub(start))
	return out, err
}
