// Package agent provides the single-turn search agent.
//
// Contains the turn states, the turn result and the orchestration error.
package agent

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/richinex/scout/model"
)

// State is a step of the turn state machine.
type State int

const (
	StateStart State = iota
	StateDeciding
	StateAnswering
	StateSearching
	StateSynthesizing
	StateDone
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDeciding:
		return "deciding"
	case StateAnswering:
		return "answering"
	case StateSearching:
		return "searching"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// transitions lists the legal successors of each non-terminal state.
// Every non-terminal state may also move to StateErrored.
var transitions = map[State][]State{
	StateStart:        {StateDeciding},
	StateDeciding:     {StateAnswering, StateSearching},
	StateAnswering:    {StateDone},
	StateSearching:    {StateSynthesizing},
	StateSynthesizing: {StateDone},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateErrored {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Result is the outcome of one turn.
type Result struct {
	Answer      model.Answer  `json:"answer"`
	TraceID     string        `json:"trace_id"`
	State       State         `json:"-"`
	Searched    bool          `json:"searched"`
	SearchTerms string        `json:"search_terms,omitempty"`
	Results     model.Results `json:"results,omitempty"`
	Duration    time.Duration `json:"-"`
}

// ErrEmptyQuery is the cause of an OrchestrationError for a blank query.
var ErrEmptyQuery = errors.New("query is empty")

// OrchestrationError is returned by Agent.Run when a turn ends in the
// errored state. It wraps the underlying cause.
type OrchestrationError struct {
	// State is the state the turn was in when it failed.
	State State
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("turn failed while %s: %v", e.State, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// UserMessage returns a message fit for the end user. It never contains
// provider details.
func (e *OrchestrationError) UserMessage() string {
	if errors.Is(e.Err, ErrEmptyQuery) {
		return "Please enter a question."
	}
	pe, ok := model.AsProviderError(e.Err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch pe.Kind {
	case model.KindTimeout:
		return "The request took too long. Please try again."
	case model.KindRateLimited:
		return "The service is busy right now. Please try again in a moment."
	case model.KindUnreachable:
		return "A required service is unavailable. Please try again later."
	case model.KindAuth:
		return "The assistant is not configured correctly. Please contact the operator."
	default:
		return "The assistant could not produce an answer. Please try again."
	}
}

// AsOrchestrationError extracts an OrchestrationError from an error chain.
func AsOrchestrationError(err error) (*OrchestrationError, bool) {
	var oe *OrchestrationError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
