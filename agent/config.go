// Agent configuration types.
//
// Information Hiding:
// - Default values hidden

package agent

import "time"

const (
	// DefaultTraceName names the trace of every turn.
	DefaultTraceName = "scout_agent"
	// DefaultFlushTimeout bounds the trace export at the end of a turn.
	DefaultFlushTimeout = 5 * time.Second

	rootSpanName = "agent_turn"
)

// Config holds agent configuration.
type Config struct {
	// TraceName is the name given to each turn's trace.
	TraceName string

	// ToolName is the search tool name reported in trace metadata.
	ToolName string

	// FlushTimeout bounds the trace flush.
	FlushTimeout time.Duration

	// Metadata is attached to every trace (model, provider, protocol).
	Metadata map[string]any
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() Config {
	return Config{
		TraceName:    DefaultTraceName,
		ToolName:     "web_search",
		FlushTimeout: DefaultFlushTimeout,
		Metadata:     map[string]any{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TraceName == "" {
		c.TraceName = d.TraceName
	}
	if c.ToolName == "" {
		c.ToolName = d.ToolName
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = d.FlushTimeout
	}
	if c.Metadata == nil {
		c.Metadata = d.Metadata
	}
	return c
}
