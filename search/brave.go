package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/richinex/scout/model"
)

// BraveEndpoint is the Brave web search API.
const BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via X-Subscription-Token.
type Brave struct {
	apiKey   string
	endpoint string
	count    int
	client   *http.Client
}

// NewBrave constructs a Brave search provider requesting count results.
func NewBrave(apiKey, endpoint string, count int, client *http.Client) *Brave {
	if endpoint == "" {
		endpoint = BraveEndpoint
	}
	return &Brave{apiKey: apiKey, endpoint: endpoint, count: ClampMaxResults(count), client: defaultHTTPClient(client)}
}

// Name returns the provider name.
func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search executes a Brave query.
func (b *Brave) Search(ctx context.Context, terms string) (model.Results, error) {
	if b.apiKey == "" {
		return nil, model.NewProviderError(b.Name(), model.KindAuth, errors.New("API key is missing"))
	}

	params := url.Values{}
	params.Set("q", terms)
	params.Set("count", strconv.Itoa(b.count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, model.NewProviderError(b.Name(), model.KindInvalidResponse, errors.Wrap(err, "build request"))
	}
	req.Header.Set("X-Subscription-Token", b.apiKey)

	var payload braveResponse
	empty, err := doJSON(b.client, b.Name(), req, &payload)
	if err != nil || empty {
		return nil, err
	}

	results := make(model.Results, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, model.SearchResult{Title: r.Title, Snippet: r.Description, URL: r.URL})
	}
	return results, nil
}
