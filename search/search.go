// Package search provides the web search client used by the agent.
//
// Information Hiding:
// - Provider HTTP endpoints, authentication and response formats
// - Mapping HTTP and transport failures onto model.ProviderError kinds
// - Top-N truncation, per-call timeout and tool span bookkeeping
package search

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/richinex/scout/model"
	"github.com/richinex/scout/trace"
)

const (
	// DefaultMaxResults is the default top-N.
	DefaultMaxResults = 5
	// MaxResultsLimit is the largest accepted top-N.
	MaxResultsLimit = 10
	// DefaultTimeout bounds each search call when no timeout is configured.
	DefaultTimeout = 10 * time.Second
)

// Provider runs one search against an external API.
// Implementations must be safe for concurrent use and must return
// *model.ProviderError for every failure of the remote call.
type Provider interface {
	Name() string
	Search(ctx context.Context, terms string) (model.Results, error)
}

// Client wraps a Provider with truncation, a timeout and tracing.
type Client struct {
	provider   Provider
	maxResults int
	timeout    time.Duration
	spanName   string
}

// Option configures a Client.
type Option func(*Client)

// WithMaxResults sets the top-N, clamped to 1..MaxResultsLimit.
func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = ClampMaxResults(n) }
}

// WithTimeout bounds each search call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSpanName sets the name of the tool span, normally the tool name
// the model called.
func WithSpanName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.spanName = name
		}
	}
}

// NewClient creates a search client over provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		maxResults: DefaultMaxResults,
		timeout:    DefaultTimeout,
		spanName:   "web_search",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClampMaxResults bounds n to 1..MaxResultsLimit.
func ClampMaxResults(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxResultsLimit:
		return MaxResultsLimit
	default:
		return n
	}
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// MaxResults returns the configured top-N.
func (c *Client) MaxResults() int {
	return c.maxResults
}

// Search runs one query and returns at most MaxResults hits in provider
// order. Zero hits is a valid outcome.
func (c *Client) Search(ctx context.Context, terms string) (model.Results, error) {
	terms = strings.TrimSpace(terms)

	return trace.Observe(ctx, c.spanName, trace.KindTool, terms,
		func(ctx context.Context, span *trace.Span) (model.Results, error) {
			span.SetMetadata("provider", c.provider.Name())
			span.SetMetadata("max_results", c.maxResults)

			if terms == "" {
				return nil, model.NewProviderError(c.provider.Name(), model.KindInvalidResponse,
					errors.New("search terms are empty"))
			}

			if c.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}

			start := time.Now()
			results, err := c.provider.Search(ctx, terms)
			if err != nil {
				return nil, model.ClassifyTransport(c.provider.Name(), err)
			}
			results = results.Truncate(c.maxResults)

			log.Debug().
				Str("provider", c.provider.Name()).
				Str("terms", terms).
				Int("results", len(results)).
				Dur("elapsed", time.Since(start)).
				Msg("search completed")

			if results == nil {
				results = model.Results{}
			}
			return results, nil
		})
}
