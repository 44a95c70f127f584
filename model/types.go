// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// Query is the user's input for one turn.
type Query string

// String returns the query text.
func (q Query) String() string {
	return string(q)
}

// Blank reports whether the query has no content after trimming whitespace.
func (q Query) Blank() bool {
	return strings.TrimSpace(string(q)) == ""
}

// DecisionKind tags which case of Decision is populated.
type DecisionKind int

const (
	// DecisionDirectAnswer means the model answered without needing search.
	DecisionDirectAnswer DecisionKind = iota
	// DecisionSearch means the model asked for a web search first.
	DecisionSearch
)

// String returns the decision kind name.
func (k DecisionKind) String() string {
	switch k {
	case DecisionDirectAnswer:
		return "direct_answer"
	case DecisionSearch:
		return "search_request"
	default:
		return "unknown"
	}
}

// Decision is the model's choice between answering and searching.
// Exactly one of Text or SearchTerms is meaningful, selected by Kind.
// Build values with DirectAnswer or SearchRequest.
type Decision struct {
	Kind        DecisionKind `json:"kind"`
	Text        string       `json:"text,omitempty"`
	SearchTerms string       `json:"search_terms,omitempty"`
}

// DirectAnswer creates a decision carrying the model's answer text.
func DirectAnswer(text string) Decision {
	return Decision{Kind: DecisionDirectAnswer, Text: text}
}

// SearchRequest creates a decision asking for a search with the given terms.
func SearchRequest(terms string) Decision {
	return Decision{Kind: DecisionSearch, SearchTerms: terms}
}

// IsSearch reports whether the decision requests a search.
func (d Decision) IsSearch() bool {
	return d.Kind == DecisionSearch
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Results is an ordered, bounded list of search hits. An empty list is valid.
type Results []SearchResult

// Truncate returns at most n results, preserving order.
func (r Results) Truncate(n int) Results {
	if n < 0 || len(r) <= n {
		return r
	}
	return r[:n]
}

// Format renders the results as a numbered list for inclusion in a prompt.
func (r Results) Format() string {
	if len(r) == 0 {
		return "(no results)"
	}
	var b strings.Builder
	for i, res := range r {
		fmt.Fprintf(&b, "%d. %s\n", i+1, res.Title)
		if res.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", res.Snippet)
		}
		if res.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", res.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Answer is the final text delivered to the caller at the end of a turn.
type Answer string

// String returns the answer text.
func (a Answer) String() string {
	return string(a)
}

// TokenUsage contains token usage statistics for one model call.
type TokenUsage struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
