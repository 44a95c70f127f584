// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Mapping SDK errors onto model.ProviderError kinds

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations must be safe for concurrent use and must return
// *model.ProviderError for every failure of the remote call.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Generate sends one request. The model may answer with text, with
	// tool calls, or both.
	Generate(ctx context.Context, req Request) (Response, error)
}
