package llm

import (
	"fmt"

	"github.com/richinex/scout/model"
)

// Prompts holds the system prompts used for the two model calls of a turn.
type Prompts struct {
	// Decide is the system prompt for the function-calling decision.
	Decide string `yaml:"decide"`
	// DecideJSON is the system prompt for the JSON decision protocol.
	DecideJSON string `yaml:"decide_json"`
	// Synthesize is the system prompt for the answer over search results.
	Synthesize string `yaml:"synthesize"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		Decide: "You are a helpful assistant with access to a web search tool. " +
			"Answer directly when you can do so reliably from your own knowledge. " +
			"Call the search tool when the question needs current information, news, " +
			"recent facts or real-time data.",
		DecideJSON: "You are a helpful assistant that can request a web search. " +
			"Reply with a single JSON object and nothing else. " +
			`To search, reply {"action":"search","query":"<search terms>"}. ` +
			`To answer directly, reply {"action":"answer","answer":"<your answer>"}. ` +
			"Search only when the question needs current information, news, recent facts or real-time data.",
		Synthesize: "You are a helpful assistant. Answer the user's question using the web " +
			"search results provided. Be concise and cite sources by URL where useful.",
	}
}

// withDefaults fills empty prompts from DefaultPrompts.
func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if p.Decide == "" {
		p.Decide = d.Decide
	}
	if p.DecideJSON == "" {
		p.DecideJSON = d.DecideJSON
	}
	if p.Synthesize == "" {
		p.Synthesize = d.Synthesize
	}
	return p
}

// synthesisPrompt renders the user message for the synthesis call.
// With no results the model is told so and asked to answer from its own
// knowledge, saying when that may be out of date.
func synthesisPrompt(query model.Query, results model.Results) string {
	if len(results) == 0 {
		return fmt.Sprintf("Question: %s\n\n"+
			"The web search returned no results. Answer from your own knowledge. "+
			"If you don't have current information, say so.", query)
	}
	return fmt.Sprintf("Question: %s\n\nSearch results:\n%s\n\n"+
		"Answer the question based on these results.", query, results.Format())
}
