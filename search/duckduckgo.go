package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/richinex/scout/model"
)

// DuckDuckGoEndpoint is the Instant Answer API.
const DuckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGo queries the keyless DuckDuckGo Instant Answer API. It returns
// the abstract, the direct answer, the definition and related topics, in
// that order.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo provider. Empty endpoint and nil client
// select the defaults.
func NewDuckDuckGo(endpoint string, client *http.Client) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DuckDuckGoEndpoint
	}
	return &DuckDuckGo{endpoint: endpoint, client: defaultHTTPClient(client)}
}

// Name returns the provider name.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading        string     `json:"Heading"`
	AbstractText   string     `json:"AbstractText"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	Answer         any        `json:"Answer"`
	Definition     string     `json:"Definition"`
	DefinitionURL  string     `json:"DefinitionURL"`
	Results        []ddgTopic `json:"Results"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

// Search runs one instant-answer query.
func (d *DuckDuckGo) Search(ctx context.Context, terms string) (model.Results, error) {
	params := url.Values{}
	params.Set("q", terms)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, model.NewProviderError(d.Name(), model.KindInvalidResponse, errors.Wrap(err, "build request"))
	}

	var payload ddgResponse
	empty, err := doJSON(d.client, d.Name(), req, &payload)
	if err != nil || empty {
		return nil, err
	}
	return payload.results(), nil
}

func (r ddgResponse) results() model.Results {
	var out model.Results

	if r.AbstractText != "" {
		title := r.Heading
		if title == "" {
			title = r.AbstractSource
		}
		out = append(out, model.SearchResult{Title: title, Snippet: r.AbstractText, URL: r.AbstractURL})
	}

	// Answer is a string for most queries and an object for calculators.
	if answer, ok := r.Answer.(string); ok && strings.TrimSpace(answer) != "" {
		out = append(out, model.SearchResult{Title: "Answer", Snippet: answer})
	}

	if r.Definition != "" {
		out = append(out, model.SearchResult{Title: "Definition", Snippet: r.Definition, URL: r.DefinitionURL})
	}

	for _, t := range r.Results {
		out = appendTopic(out, t)
	}
	for _, t := range r.RelatedTopics {
		out = appendTopic(out, t)
	}
	return out
}

// appendTopic adds a related topic, flattening named topic groups.
func appendTopic(out model.Results, t ddgTopic) model.Results {
	if len(t.Topics) > 0 {
		for _, sub := range t.Topics {
			out = appendTopic(out, sub)
		}
		return out
	}
	if t.Text == "" {
		return out
	}
	title, snippet := t.Text, t.Text
	if head, rest, ok := strings.Cut(t.Text, " - "); ok {
		title, snippet = head, rest
	}
	return append(out, model.SearchResult{Title: title, Snippet: snippet, URL: t.FirstURL})
}
