// Package metrics records turn outcomes and step latencies.
//
// Information Hiding:
// - Prometheus collectors and label sets hidden behind Recorder
// - Nop implementation for callers that do not export metrics
package metrics

import "time"

// Recorder receives agent turn and step observations. Implementations must
// be safe for concurrent use.
type Recorder interface {
	// ObserveTurn records a finished turn. outcome is "answered", "searched"
	// or "errored".
	ObserveTurn(outcome string, duration time.Duration)

	// ObserveStep records one external call: step is decide, search or
	// synthesize; status is "ok" or an error kind.
	ObserveStep(step, status string, duration time.Duration)

	// ObserveFlush records a trace flush.
	ObserveFlush(backend string, ok bool)
}

// Nop discards observations.
type Nop struct{}

func (Nop) ObserveTurn(string, time.Duration)         {}
func (Nop) ObserveStep(string, string, time.Duration) {}
func (Nop) ObserveFlush(string, bool)                 {}

var _ Recorder = Nop{}
