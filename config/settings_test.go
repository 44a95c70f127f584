package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/scout/llm"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"GEMINI_API_KEY":      "gemini-key",
		"LANGFUSE_PUBLIC_KEY": "pk-lf",
		"LANGFUSE_SECRET_KEY": "sk-lf",
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := load("", envFrom(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, llm.ProviderGemini, s.LLM.Provider)
	assert.Equal(t, llm.ModelGeminiFlash25, s.LLM.Model)
	assert.Equal(t, "gemini-key", s.LLM.APIKey)
	assert.Equal(t, llm.ProtocolTools, s.LLM.Protocol)
	assert.Equal(t, DefaultModelTimeout, s.LLM.Timeout)
	assert.Equal(t, uint32(2048), s.LLM.MaxTokens)

	assert.Equal(t, "duckduckgo", s.Search.Provider)
	assert.Equal(t, 5, s.Search.MaxResults)
	assert.Equal(t, DefaultSearchTimeout, s.Search.Timeout)

	assert.Equal(t, DefaultTraceName, s.Trace.Name)
	assert.Equal(t, []string{BackendLangfuse}, s.Trace.Backends)
	assert.Equal(t, DefaultLangfuseHost, s.Trace.LangfuseHost)
	assert.Equal(t, DefaultFlushTimeout, s.Trace.FlushTimeout)
}

func TestLoadMissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		drop  string
		field string
	}{
		{"model key", "GEMINI_API_KEY", "GEMINI_API_KEY"},
		{"langfuse public key", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_PUBLIC_KEY"},
		{"langfuse secret key", "LANGFUSE_SECRET_KEY", "LANGFUSE_SECRET_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			delete(env, tt.drop)

			_, err := load("", envFrom(env))
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadLangfuseKeysOptionalWithoutLangfuseBackend(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":       "gemini-key",
		"SCOUT_TRACE_BACKENDS": "sqlite, otel",
	}
	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, []string{BackendSqlite, BackendOTel}, s.Trace.Backends)
	assert.False(t, s.Trace.HasBackend(BackendLangfuse))
}

func TestLoadBackendsNone(t *testing.T) {
	env := map[string]string{"GEMINI_API_KEY": "k", "SCOUT_TRACE_BACKENDS": "none"}
	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Empty(t, s.Trace.Backends)
}

func TestLoadProviderKeyFollowsProvider(t *testing.T) {
	env := baseEnv()
	env["SCOUT_PROVIDER"] = "claude"

	_, err := load("", envFrom(env))
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ANTHROPIC_API_KEY", ce.Field)

	env["ANTHROPIC_API_KEY"] = "anthropic-key"
	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderAnthropic, s.LLM.Provider)
	assert.Equal(t, llm.ModelAnthropicClaudeSonnet4, s.LLM.Model)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SCOUT_PROVIDER", "mystery"},
		{"SCOUT_DECISION_PROTOCOL", "xml"},
		{"SCOUT_MODEL_TIMEOUT", "soon"},
		{"SCOUT_SEARCH_TIMEOUT", "-3s"},
		{"SCOUT_FLUSH_TIMEOUT", "0"},
		{"SEARCH_MAX_RESULTS", "five"},
		{"LLM_MAX_TOKENS", "0"},
		{"LLM_TEMPERATURE", "hot"},
		{"LLM_TEMPERATURE", "3"},
		{"SCOUT_TRACE_BACKENDS", "langfuse,datadog"},
		{"SCOUT_SEARCH_PROVIDER", "altavista"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.value

			_, err := load("", envFrom(env))
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Field)
		})
	}
}

func TestLoadClampsMaxResults(t *testing.T) {
	for value, want := range map[string]int{"0": 1, "-4": 1, "3": 3, "50": 10} {
		env := baseEnv()
		env["SEARCH_MAX_RESULTS"] = value
		s, err := load("", envFrom(env))
		require.NoError(t, err)
		assert.Equal(t, want, s.Search.MaxResults, value)
	}
}

func TestLoadDurationFormats(t *testing.T) {
	env := baseEnv()
	env["SCOUT_MODEL_TIMEOUT"] = "45"
	env["SCOUT_SEARCH_TIMEOUT"] = "1500ms"

	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, s.LLM.Timeout)
	assert.Equal(t, 1500*time.Millisecond, s.Search.Timeout)
}

func TestLoadSearchProviderKeys(t *testing.T) {
	env := baseEnv()
	env["SCOUT_SEARCH_PROVIDER"] = "brave"
	_, err := load("", envFrom(env))
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "BRAVE_API_KEY", ce.Field)

	env["BRAVE_API_KEY"] = "brave-key"
	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, "brave", s.Search.Provider)
	assert.Equal(t, "brave-key", s.Search.BraveKey)
}

const yamlConfig = `
provider: openai
model: gpt-4o
protocol: json
model_timeout: 20s
tool:
  name: lookup
  description: Look things up
search:
  max_results: 3
  timeout: 4s
trace:
  name: file_trace
  backends: [sqlite]
  db_path: /tmp/scout-test.db
  flush_timeout: 2s
prompts:
  synthesize: Answer briefly.
`

func TestLoadYAMLOverlay(t *testing.T) {
	path := writeFile(t, yamlConfig)
	env := map[string]string{"OPENAI_API_KEY": "openai-key"}

	s, err := load(path, envFrom(env))
	require.NoError(t, err)

	assert.Equal(t, llm.ProviderOpenAI, s.LLM.Provider)
	assert.Equal(t, "gpt-4o", s.LLM.Model)
	assert.Equal(t, llm.ProtocolJSON, s.LLM.Protocol)
	assert.Equal(t, 20*time.Second, s.LLM.Timeout)
	assert.Equal(t, "lookup", s.LLM.Tool.Name)
	assert.Equal(t, "Answer briefly.", s.LLM.Prompts.Synthesize)
	assert.Equal(t, 3, s.Search.MaxResults)
	assert.Equal(t, 4*time.Second, s.Search.Timeout)
	assert.Equal(t, "file_trace", s.Trace.Name)
	assert.Equal(t, []string{BackendSqlite}, s.Trace.Backends)
	assert.Equal(t, "/tmp/scout-test.db", s.Trace.DBPath)
	assert.Equal(t, 2*time.Second, s.Trace.FlushTimeout)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, yamlConfig)
	env := map[string]string{
		"OPENAI_API_KEY":          "openai-key",
		"SCOUT_MODEL":             "gpt-4o-mini",
		"SCOUT_DECISION_PROTOCOL": "tools",
		"SEARCH_MAX_RESULTS":      "7",
		"SCOUT_TRACE_BACKENDS":    "otel",
	}

	s, err := load(path, envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
	assert.Equal(t, llm.ProtocolTools, s.LLM.Protocol)
	assert.Equal(t, 7, s.Search.MaxResults)
	assert.Equal(t, []string{BackendOTel}, s.Trace.Backends)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, yamlConfig)
	env := map[string]string{"OPENAI_API_KEY": "k", "SCOUT_CONFIG": path}

	s, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, "file_trace", s.Trace.Name)
}

func TestLoadBadConfigFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), envFrom(baseEnv()))
	assert.True(t, IsConfigurationError(err))

	path := writeFile(t, "provider: [unclosed")
	_, err = load(path, envFrom(baseEnv()))
	assert.True(t, IsConfigurationError(err))
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "GEMINI_API_KEY", Reason: "not set"}
	assert.Equal(t, "configuration error: GEMINI_API_KEY: not set", err.Error())
}
