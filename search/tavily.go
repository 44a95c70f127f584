package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/richinex/scout/model"
)

// TavilyEndpoint is the Tavily search API.
const TavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	depth    string
	count    int
	client   *http.Client
}

// NewTavily constructs a Tavily search provider. depth is "basic" or
// "advanced"; empty selects basic.
func NewTavily(apiKey, endpoint, depth string, count int, client *http.Client) *Tavily {
	if endpoint == "" {
		endpoint = TavilyEndpoint
	}
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{apiKey: apiKey, endpoint: endpoint, depth: depth, count: ClampMaxResults(count), client: defaultHTTPClient(client)}
}

// Name returns the provider name.
func (t *Tavily) Name() string { return "tavily" }

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, terms string) (model.Results, error) {
	if t.apiKey == "" {
		return nil, model.NewProviderError(t.Name(), model.KindAuth, errors.New("API key is missing"))
	}

	payload, err := json.Marshal(map[string]any{
		"query":        terms,
		"api_key":      t.apiKey,
		"search_depth": t.depth,
		"max_results":  t.count,
	})
	if err != nil {
		return nil, model.NewProviderError(t.Name(), model.KindInvalidResponse, errors.Wrap(err, "encode request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewProviderError(t.Name(), model.KindInvalidResponse, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")

	var resp tavilyResponse
	empty, err := doJSON(t.client, t.Name(), req, &resp)
	if err != nil || empty {
		return nil, err
	}

	results := make(model.Results, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, model.SearchResult{Title: r.Title, Snippet: r.Content, URL: r.URL})
	}
	return results, nil
}
