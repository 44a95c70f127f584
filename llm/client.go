// Model Client - the two model calls of an agent turn.
//
// Information Hiding:
// - Prompt construction and the web search tool declaration
// - Decision protocol (function calling vs. JSON reply) and its parsing
// - Per-call timeout and generation span bookkeeping

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/richinex/scout/internal/json"
	"github.com/richinex/scout/model"
	"github.com/richinex/scout/trace"
)

// Protocol selects how the model signals that it wants a search.
type Protocol string

const (
	// ProtocolTools uses native function calling.
	ProtocolTools Protocol = "tools"
	// ProtocolJSON asks the model for a JSON action object.
	ProtocolJSON Protocol = "json"
)

// ParseProtocol parses a protocol name (case-insensitive).
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolTools, "":
		return ProtocolTools, nil
	case ProtocolJSON:
		return ProtocolJSON, nil
	default:
		return "", errors.Errorf("unknown decision protocol: %s", s)
	}
}

// DefaultTimeout bounds each model call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client wraps a Provider with the decide/synthesize operations.
// It holds no per-turn state and is safe for concurrent use.
type Client struct {
	provider Provider
	protocol Protocol
	timeout  time.Duration
	tool     SearchTool
	prompts  Prompts
}

// Option configures a Client.
type Option func(*Client)

// WithProtocol sets the decision protocol.
func WithProtocol(p Protocol) Option {
	return func(c *Client) { c.protocol = p }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSearchTool replaces the web search declaration.
func WithSearchTool(t SearchTool) Option {
	return func(c *Client) { c.tool = t.withDefaults() }
}

// WithPrompts replaces the system prompts. Empty fields keep their defaults.
func WithPrompts(p Prompts) Option {
	return func(c *Client) { c.prompts = p.withDefaults() }
}

// NewClient creates a new model client from a provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		protocol: ProtocolTools,
		timeout:  DefaultTimeout,
		tool:     DefaultSearchTool(),
		prompts:  DefaultPrompts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Protocol returns the decision protocol in use.
func (c *Client) Protocol() Protocol {
	return c.protocol
}

// Decide asks the model whether the query needs a web search.
func (c *Client) Decide(ctx context.Context, query model.Query) (model.Decision, error) {
	req := c.decideRequest(query)

	return trace.Observe(ctx, "model.decide", trace.KindGeneration, req.Messages,
		func(ctx context.Context, span *trace.Span) (model.Decision, error) {
			c.annotate(span)
			span.SetMetadata("protocol", string(c.protocol))

			resp, err := c.generate(ctx, req, span)
			if err != nil {
				return model.Decision{}, err
			}

			interpret := c.interpretTools
			if c.protocol == ProtocolJSON {
				interpret = c.interpretJSON
			}
			decision, err := interpret(resp, query)
			if err != nil {
				return model.Decision{}, err
			}
			span.SetMetadata("decision", decision.Kind.String())
			return decision, nil
		})
}

// Synthesize asks the model for the final answer given the search results.
// An empty result set is valid input.
func (c *Client) Synthesize(ctx context.Context, query model.Query, results model.Results) (model.Answer, error) {
	req := Request{Messages: []Message{
		SystemMessage(c.prompts.Synthesize),
		UserMessage(synthesisPrompt(query, results)),
	}}

	return trace.Observe(ctx, "model.synthesize", trace.KindGeneration, req.Messages,
		func(ctx context.Context, span *trace.Span) (model.Answer, error) {
			c.annotate(span)
			span.SetMetadata("result_count", len(results))

			resp, err := c.generate(ctx, req, span)
			if err != nil {
				return "", err
			}
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return "", c.invalid("synthesis returned no text")
			}
			return model.Answer(text), nil
		})
}

func (c *Client) decideRequest(query model.Query) Request {
	if c.protocol == ProtocolJSON {
		return Request{
			Messages: []Message{
				SystemMessage(c.prompts.DecideJSON),
				UserMessage(query.String()),
			},
			JSONOutput: true,
		}
	}
	return Request{
		Messages: []Message{
			SystemMessage(c.prompts.Decide),
			UserMessage(query.String()),
		},
		Tools: []ToolDefinition{c.tool.Definition()},
	}
}

// generate runs one bounded provider call and records the raw response on
// the span.
func (c *Client) generate(ctx context.Context, req Request, span *trace.Span) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return Response{}, model.ClassifyTransport(c.provider.Name(), err)
	}

	span.SetOutput(resp)
	if resp.Usage != nil {
		span.SetMetadata("usage", map[string]any{
			"input":  resp.Usage.PromptTokens,
			"output": resp.Usage.CompletionTokens,
			"total":  resp.Usage.TotalTokens,
			"unit":   "TOKENS",
		})
	}
	return resp, nil
}

func (c *Client) annotate(span *trace.Span) {
	span.SetMetadata("model", c.provider.Model())
	span.SetMetadata("provider", c.provider.Name())
}

// interpretTools maps a function-calling response onto a Decision. A call to
// the search tool wins over any accompanying text.
func (c *Client) interpretTools(resp Response, query model.Query) (model.Decision, error) {
	for _, call := range resp.ToolCalls {
		if call.Name != c.tool.Name {
			return model.Decision{}, c.invalid("model called unknown tool %q", call.Name)
		}
		terms := strings.TrimSpace(call.StringArg(c.tool.QueryParam))
		if terms == "" {
			terms = query.String()
		}
		return model.SearchRequest(terms), nil
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return model.Decision{}, c.invalid("response has neither text nor tool call")
	}
	return model.DirectAnswer(text), nil
}

type jsonAction struct {
	Action string `json:"action"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// interpretJSON maps a JSON-protocol reply onto a Decision. Replies that do
// not parse are taken as a direct answer.
func (c *Client) interpretJSON(resp Response, query model.Query) (model.Decision, error) {
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return model.Decision{}, c.invalid("response has no text")
	}

	action, err := json.ExtractJSONFromResponse[jsonAction](text)
	if err != nil {
		return model.DirectAnswer(text), nil
	}

	switch strings.ToLower(action.Action) {
	case "search":
		terms := strings.TrimSpace(action.Query)
		if terms == "" {
			terms = query.String()
		}
		return model.SearchRequest(terms), nil
	case "answer":
		if answer := strings.TrimSpace(action.Answer); answer != "" {
			return model.DirectAnswer(answer), nil
		}
	}
	return model.DirectAnswer(text), nil
}

func (c *Client) invalid(format string, args ...any) error {
	return model.NewProviderError(c.provider.Name(), model.KindInvalidResponse, errors.Errorf(format, args...))
}
