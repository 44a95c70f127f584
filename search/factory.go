package search

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ProviderConfig selects and configures a search provider.
type ProviderConfig struct {
	// Name is duckduckgo, brave or tavily.
	Name        string
	BraveKey    string
	TavilyKey   string
	TavilyDepth string
	// Endpoint overrides the provider URL.
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "duckduckgo", "ddg":
		return NewDuckDuckGo(cfg.Endpoint, cfg.HTTPClient), nil
	case "brave":
		if cfg.BraveKey == "" {
			return nil, errors.New("brave search requires an API key")
		}
		return NewBrave(cfg.BraveKey, cfg.Endpoint, cfg.MaxResults, cfg.HTTPClient), nil
	case "tavily":
		if cfg.TavilyKey == "" {
			return nil, errors.New("tavily search requires an API key")
		}
		return NewTavily(cfg.TavilyKey, cfg.Endpoint, cfg.TavilyDepth, cfg.MaxResults, cfg.HTTPClient), nil
	default:
		return nil, errors.Errorf("unknown search provider: %s", cfg.Name)
	}
}
