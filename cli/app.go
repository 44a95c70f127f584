// Component wiring for CLI commands.
//
// Information Hiding:
// - Provider, search and trace backend construction hidden
// - Backend lifecycle (SQLite handle, OTel provider) hidden behind Close

package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/richinex/scout/agent"
	"github.com/richinex/scout/config"
	"github.com/richinex/scout/llm"
	"github.com/richinex/scout/metrics"
	"github.com/richinex/scout/search"
	"github.com/richinex/scout/storage"
	"github.com/richinex/scout/trace"
)

const serviceName = "scout"

// App holds the components of a running scout process.
type App struct {
	Agent    *agent.Agent
	Metrics  *metrics.Prometheus
	Settings config.Settings

	closers []func(context.Context) error
}

// Options tunes NewApp. Zero values use the real providers.
type Options struct {
	// Provider replaces the model provider built from settings.
	Provider llm.Provider
	// Search replaces the search provider built from settings.
	Search search.Provider
	// OTelWriter receives pretty-printed spans when no OTLP endpoint is set.
	OTelWriter io.Writer
}

// NewApp builds every component from settings.
func NewApp(ctx context.Context, s config.Settings, opts Options) (*App, error) {
	provider := opts.Provider
	if provider == nil {
		p, err := llm.NewProviderBuilder(s.LLM.Provider).
			Model(s.LLM.Model).
			BaseURL(s.LLM.BaseURL).
			MaxTokens(s.LLM.MaxTokens).
			Temperature(s.LLM.Temperature).
			APIKey(s.LLM.APIKey)
		if err != nil {
			return nil, errors.Wrap(err, "create model provider")
		}
		provider = p
	}

	searchProvider := opts.Search
	if searchProvider == nil {
		p, err := search.NewProvider(search.ProviderConfig{
			Name:        s.Search.Provider,
			BraveKey:    s.Search.BraveKey,
			TavilyKey:   s.Search.TavilyKey,
			TavilyDepth: s.Search.TavilyDepth,
			Endpoint:    s.Search.Endpoint,
			MaxResults:  s.Search.MaxResults,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create search provider")
		}
		searchProvider = p
	}

	modelClient := llm.NewClient(provider,
		llm.WithProtocol(s.LLM.Protocol),
		llm.WithTimeout(s.LLM.Timeout),
		llm.WithSearchTool(s.LLM.Tool),
		llm.WithPrompts(s.LLM.Prompts),
	)
	searchClient := search.NewClient(searchProvider,
		search.WithMaxResults(s.Search.MaxResults),
		search.WithTimeout(s.Search.Timeout),
	)

	prom, err := metrics.NewPrometheus(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	app := &App{Metrics: prom, Settings: s}
	backend, err := app.openBackends(ctx, s.Trace, opts.OTelWriter)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	toolName := s.LLM.Tool.Name
	if toolName == "" {
		toolName = llm.DefaultSearchTool().Name
	}

	app.Agent, err = agent.NewBuilder(modelClient, searchClient).
		TraceName(s.Trace.Name).
		ToolName(toolName).
		Backend(backend).
		Metrics(prom).
		FlushTimeout(s.Trace.FlushTimeout).
		Metadata("provider", provider.Name()).
		Metadata("model", provider.Model()).
		Metadata("protocol", string(modelClient.Protocol())).
		Metadata("search_provider", searchProvider.Name()).
		Build()
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	log.Debug().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Str("search", searchProvider.Name()).
		Str("backend", backend.Name()).
		Msg("components ready")
	return app, nil
}

func (a *App) openBackends(ctx context.Context, cfg config.TraceConfig, otelWriter io.Writer) (trace.Backend, error) {
	var backends []trace.Backend
	for _, name := range cfg.Backends {
		switch name {
		case config.BackendLangfuse:
			backends = append(backends, trace.NewLangfuseBackend(cfg.LangfuseHost, cfg.LangfusePublicKey, cfg.LangfuseSecretKey, nil))
		case config.BackendSqlite:
			store, err := storage.OpenSqlite(cfg.DBPath)
			if err != nil {
				return nil, errors.Wrap(err, "open trace log")
			}
			a.closers = append(a.closers, func(context.Context) error { return store.Close() })
			backends = append(backends, store)
		case config.BackendOTel:
			b, err := trace.NewOTelBackend(ctx, serviceName, cfg.OTLPEndpoint, otelWriter)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, b.Shutdown)
			backends = append(backends, b)
		default:
			return nil, errors.Errorf("unknown trace backend %q", name)
		}
	}

	switch len(backends) {
	case 0:
		return trace.NopBackend{}, nil
	case 1:
		return backends[0], nil
	default:
		return trace.NewMultiBackend(backends...), nil
	}
}

// Close releases backend resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
