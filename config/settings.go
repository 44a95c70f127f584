// Package config provides application settings loaded once at startup.
//
// Settings are created via Load() which handles:
// - Optional YAML file overlay (--config / SCOUT_CONFIG)
// - Environment variable parsing with validation (env wins over the file)
// - Default value application
// - Credential lookup for the selected providers and trace backends
//
// The returned Settings value is immutable by convention: it is passed by
// value and never written after Load returns.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/richinex/scout/llm"
	"github.com/richinex/scout/search"
)

// Trace backend names accepted in SCOUT_TRACE_BACKENDS.
const (
	BackendLangfuse = "langfuse"
	BackendSqlite   = "sqlite"
	BackendOTel     = "otel"
	BackendNone     = "none"
)

// Defaults.
const (
	DefaultLangfuseHost  = "https://cloud.langfuse.com"
	DefaultTraceName     = "scout_agent"
	DefaultTraceDB       = ".scout/traces.db"
	DefaultModelTimeout  = 30 * time.Second
	DefaultSearchTimeout = 10 * time.Second
	DefaultFlushTimeout  = 5 * time.Second
)

// Settings holds all application configuration.
type Settings struct {
	LLM    LLMConfig
	Search SearchConfig
	Trace  TraceConfig
}

// LLMConfig holds model provider configuration.
type LLMConfig struct {
	Provider    llm.ProviderType
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   uint32
	Temperature float32
	Protocol    llm.Protocol
	Timeout     time.Duration
	Tool        llm.SearchTool
	Prompts     llm.Prompts
}

// SearchConfig holds web search configuration.
type SearchConfig struct {
	Provider    string
	Endpoint    string
	BraveKey    string
	TavilyKey   string
	TavilyDepth string
	MaxResults  int
	Timeout     time.Duration
}

// TraceConfig holds tracing configuration.
type TraceConfig struct {
	Name              string
	Backends          []string
	LangfuseHost      string
	LangfusePublicKey string
	LangfuseSecretKey string
	DBPath            string
	OTLPEndpoint      string
	FlushTimeout      time.Duration
}

// HasBackend reports whether the named trace backend is enabled.
func (t TraceConfig) HasBackend(name string) bool {
	for _, b := range t.Backends {
		if b == name {
			return true
		}
	}
	return false
}

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Field + ": " + e.Reason
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: errors.Errorf(format, args...).Error()}
}

// fileConfig mirrors the optional YAML file. Secrets are never read from it.
type fileConfig struct {
	Provider     string         `yaml:"provider"`
	Model        string         `yaml:"model"`
	BaseURL      string         `yaml:"base_url"`
	MaxTokens    string         `yaml:"max_tokens"`
	Temperature  string         `yaml:"temperature"`
	Protocol     string         `yaml:"protocol"`
	ModelTimeout string         `yaml:"model_timeout"`
	Tool         llm.SearchTool `yaml:"tool"`
	Prompts      llm.Prompts    `yaml:"prompts"`
	Search       struct {
		Provider    string `yaml:"provider"`
		Endpoint    string `yaml:"endpoint"`
		TavilyDepth string `yaml:"tavily_depth"`
		MaxResults  string `yaml:"max_results"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"search"`
	Trace struct {
		Name         string   `yaml:"name"`
		Backends     []string `yaml:"backends"`
		LangfuseHost string   `yaml:"langfuse_host"`
		DBPath       string   `yaml:"db_path"`
		OTLPEndpoint string   `yaml:"otlp_endpoint"`
		FlushTimeout string   `yaml:"flush_timeout"`
	} `yaml:"trace"`
}

// Load reads settings from the YAML file at path (if any) and the
// environment. An empty path falls back to SCOUT_CONFIG.
func Load(path string) (Settings, error) {
	return load(path, os.LookupEnv)
}

// MustLoad is Load that panics on error.
// Use this only when configuration errors should be fatal.
func MustLoad(path string) Settings {
	s, err := Load(path)
	if err != nil {
		panic(err)
	}
	return s
}

func load(path string, lookup func(string) (string, bool)) (Settings, error) {
	env := source{lookup: lookup}
	if path == "" {
		path = env.get("SCOUT_CONFIG", "")
	}

	var file fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, invalid("SCOUT_CONFIG", "cannot read %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, invalid("SCOUT_CONFIG", "cannot parse %s: %v", path, err)
		}
	}

	llmCfg, err := loadLLM(env, file)
	if err != nil {
		return Settings{}, err
	}
	searchCfg, err := loadSearch(env, file)
	if err != nil {
		return Settings{}, err
	}
	traceCfg, err := loadTrace(env, file)
	if err != nil {
		return Settings{}, err
	}

	return Settings{LLM: llmCfg, Search: searchCfg, Trace: traceCfg}, nil
}

func loadLLM(env source, file fileConfig) (LLMConfig, error) {
	providerName := env.get("SCOUT_PROVIDER", orDefault(file.Provider, "gemini"))
	provider, err := llm.ParseProviderType(providerName)
	if err != nil {
		return LLMConfig{}, invalid("SCOUT_PROVIDER", "unknown provider %q", providerName)
	}

	key := env.get(provider.EnvVar(), "")
	if strings.TrimSpace(key) == "" {
		return LLMConfig{}, &ConfigurationError{Field: provider.EnvVar(), Reason: "not set"}
	}

	maxTokens, err := env.getUint32("LLM_MAX_TOKENS", file.MaxTokens, 2048)
	if err != nil {
		return LLMConfig{}, err
	}
	temperature, err := env.getFloat32("LLM_TEMPERATURE", file.Temperature, 0.2)
	if err != nil {
		return LLMConfig{}, err
	}
	if temperature < 0 || temperature > 2 {
		return LLMConfig{}, invalid("LLM_TEMPERATURE", "must be between 0 and 2, got %v", temperature)
	}

	protocolName := env.get("SCOUT_DECISION_PROTOCOL", file.Protocol)
	protocol, err := llm.ParseProtocol(protocolName)
	if err != nil {
		return LLMConfig{}, invalid("SCOUT_DECISION_PROTOCOL", "unknown protocol %q", protocolName)
	}

	timeout, err := env.getDuration("SCOUT_MODEL_TIMEOUT", file.ModelTimeout, DefaultModelTimeout)
	if err != nil {
		return LLMConfig{}, err
	}

	model := env.get("SCOUT_MODEL", file.Model)
	if model == "" {
		model = provider.DefaultModel()
	}

	return LLMConfig{
		Provider:    provider,
		Model:       model,
		APIKey:      key,
		BaseURL:     env.get("SCOUT_BASE_URL", file.BaseURL),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Protocol:    protocol,
		Timeout:     timeout,
		Tool:        file.Tool,
		Prompts:     file.Prompts,
	}, nil
}

func loadSearch(env source, file fileConfig) (SearchConfig, error) {
	cfg := SearchConfig{
		Provider:    strings.ToLower(env.get("SCOUT_SEARCH_PROVIDER", orDefault(file.Search.Provider, "duckduckgo"))),
		Endpoint:    env.get("SCOUT_SEARCH_ENDPOINT", file.Search.Endpoint),
		BraveKey:    env.get("BRAVE_API_KEY", ""),
		TavilyKey:   env.get("TAVILY_API_KEY", ""),
		TavilyDepth: env.get("TAVILY_SEARCH_DEPTH", file.Search.TavilyDepth),
	}

	switch cfg.Provider {
	case "duckduckgo", "ddg":
	case "brave":
		if cfg.BraveKey == "" {
			return SearchConfig{}, &ConfigurationError{Field: "BRAVE_API_KEY", Reason: "not set"}
		}
	case "tavily":
		if cfg.TavilyKey == "" {
			return SearchConfig{}, &ConfigurationError{Field: "TAVILY_API_KEY", Reason: "not set"}
		}
	default:
		return SearchConfig{}, invalid("SCOUT_SEARCH_PROVIDER", "unknown search provider %q", cfg.Provider)
	}

	maxResults, err := env.getInt("SEARCH_MAX_RESULTS", file.Search.MaxResults, search.DefaultMaxResults)
	if err != nil {
		return SearchConfig{}, err
	}
	cfg.MaxResults = search.ClampMaxResults(maxResults)

	cfg.Timeout, err = env.getDuration("SCOUT_SEARCH_TIMEOUT", file.Search.Timeout, DefaultSearchTimeout)
	if err != nil {
		return SearchConfig{}, err
	}
	return cfg, nil
}

func loadTrace(env source, file fileConfig) (TraceConfig, error) {
	cfg := TraceConfig{
		Name:              env.get("SCOUT_TRACE_NAME", orDefault(file.Trace.Name, DefaultTraceName)),
		LangfuseHost:      strings.TrimRight(env.get("LANGFUSE_HOST", orDefault(file.Trace.LangfuseHost, DefaultLangfuseHost)), "/"),
		LangfusePublicKey: env.get("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: env.get("LANGFUSE_SECRET_KEY", ""),
		DBPath:            env.get("SCOUT_TRACE_DB", orDefault(file.Trace.DBPath, DefaultTraceDB)),
		OTLPEndpoint:      env.get("OTEL_EXPORTER_OTLP_ENDPOINT", file.Trace.OTLPEndpoint),
	}

	raw := file.Trace.Backends
	if v, ok := env.lookup("SCOUT_TRACE_BACKENDS"); ok {
		raw = strings.Split(v, ",")
	}
	if len(raw) == 0 {
		raw = []string{BackendLangfuse}
	}
	backends, err := parseBackends(raw)
	if err != nil {
		return TraceConfig{}, err
	}
	cfg.Backends = backends

	if cfg.HasBackend(BackendLangfuse) {
		if cfg.LangfusePublicKey == "" {
			return TraceConfig{}, &ConfigurationError{Field: "LANGFUSE_PUBLIC_KEY", Reason: "not set"}
		}
		if cfg.LangfuseSecretKey == "" {
			return TraceConfig{}, &ConfigurationError{Field: "LANGFUSE_SECRET_KEY", Reason: "not set"}
		}
	}

	cfg.FlushTimeout, err = env.getDuration("SCOUT_FLUSH_TIMEOUT", file.Trace.FlushTimeout, DefaultFlushTimeout)
	if err != nil {
		return TraceConfig{}, err
	}
	return cfg, nil
}

func parseBackends(raw []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, name := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case BackendNone:
			return nil, nil
		case BackendLangfuse, BackendSqlite, BackendOTel:
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		default:
			return nil, invalid("SCOUT_TRACE_BACKENDS", "unknown trace backend %q", name)
		}
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// source reads environment variables, falling back to file values.
type source struct {
	lookup func(string) (string, bool)
}

func (s source) get(key, fallback string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

// Environment variable helpers with proper error handling

func (s source) getInt(key, fileVal string, defaultVal int) (int, error) {
	val := s.get(key, fileVal)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, invalid(key, "invalid integer %q", val)
	}
	return i, nil
}

func (s source) getUint32(key, fileVal string, defaultVal uint32) (uint32, error) {
	val := s.get(key, fileVal)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil || i == 0 {
		return 0, invalid(key, "invalid positive integer %q", val)
	}
	return uint32(i), nil
}

func (s source) getFloat32(key, fileVal string, defaultVal float32) (float32, error) {
	val := s.get(key, fileVal)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, invalid(key, "invalid number %q", val)
	}
	return float32(f), nil
}

// getDuration accepts Go durations ("30s") or plain seconds ("30").
func (s source) getDuration(key, fileVal string, defaultVal time.Duration) (time.Duration, error) {
	val := s.get(key, fileVal)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		secs, serr := strconv.ParseFloat(val, 64)
		if serr != nil {
			return 0, invalid(key, "invalid duration %q", val)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return 0, invalid(key, "must be positive, got %q", val)
	}
	return d, nil
}
