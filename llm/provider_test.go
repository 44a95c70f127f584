package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/richinex/scout/model"
)

func TestOpenAIProviderToolCall(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "web_search", "arguments": "{\"query\":\"go release\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatibleProvider("openai", "sk-test", srv.URL, "gpt-4o-mini", 256, 0)
	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{SystemMessage("sys"), UserMessage("latest go release?")},
		Tools:    []ToolDefinition{DefaultSearchTool().Definition()},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "web_search", resp.ToolCalls[0].Name)
	assert.Equal(t, "go release", resp.ToolCalls[0].StringArg("query"))
	assert.Equal(t, uint32(17), resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	tools, ok := got["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestOpenAIProviderErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   model.ErrorKind
	}{
		{http.StatusTooManyRequests, model.KindRateLimited},
		{http.StatusUnauthorized, model.KindAuth},
		{http.StatusInternalServerError, model.KindUnreachable},
		{http.StatusBadRequest, model.KindInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			}))
			defer srv.Close()

			p := NewOpenAICompatibleProvider("deepseek", "k", srv.URL, "deepseek-chat", 64, 0)
			_, err := p.Generate(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
			require.Error(t, err)

			pe, ok := model.AsProviderError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, "deepseek", pe.Provider)
		})
	}
}

func TestOpenAIProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenAICompatibleProvider("openai", "k", url, "gpt-4o", 64, 0)
	_, err := p.Generate(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	assert.True(t, model.IsProviderError(err, model.KindUnreachable))
}

func TestAnthropicProviderToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "text", "text": "Searching."},
				{"type": "tool_use", "id": "toolu_1", "name": "web_search", "input": {"query": "mars rover"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("sk-ant", ModelAnthropicClaudeSonnet4, srv.URL, 256, 0)
	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{SystemMessage("sys"), UserMessage("rover news")},
		Tools:    []ToolDefinition{DefaultSearchTool().Definition()},
	})
	require.NoError(t, err)
	assert.Equal(t, "Searching.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "mars rover", resp.ToolCalls[0].StringArg("query"))
	assert.Equal(t, uint32(27), resp.Usage.TotalTokens)
}

func TestClassifyAnthropicError(t *testing.T) {
	err := classifyAnthropicError(errors.WithStack(&anthropic.Error{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, model.IsProviderError(err, model.KindRateLimited))

	err = classifyAnthropicError(context.DeadlineExceeded)
	assert.True(t, model.IsProviderError(err, model.KindTimeout))
}

func TestClassifyGeminiError(t *testing.T) {
	err := classifyGeminiError(genai.APIError{Code: http.StatusForbidden, Message: "key revoked"})
	assert.True(t, model.IsProviderError(err, model.KindAuth))

	err = classifyGeminiError(errors.Wrap(genai.APIError{Code: http.StatusServiceUnavailable}, "generate"))
	assert.True(t, model.IsProviderError(err, model.KindUnreachable))

	err = classifyGeminiError(errors.New("dial tcp: connection refused"))
	assert.True(t, model.IsProviderError(err, model.KindUnreachable))
}

func TestResponseFromGemini(t *testing.T) {
	resp := responseFromGemini(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: "I'll search."},
					{FunctionCall: &genai.FunctionCall{Name: "web_search", Args: map[string]any{"query": "ev sales 2025"}}},
				},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     30,
			CandidatesTokenCount: 4,
			TotalTokenCount:      34,
		},
	})

	assert.Equal(t, "I'll search.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "ev sales 2025", resp.ToolCalls[0].StringArg("query"))
	assert.Equal(t, uint32(34), resp.Usage.TotalTokens)

	assert.Equal(t, Response{}, responseFromGemini(nil))
}

func TestConvertToGeminiSchema(t *testing.T) {
	schema := convertToGeminiSchema(DefaultSearchTool().Definition().Parameters)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"query"}, schema.Required)
	require.Contains(t, schema.Properties, "query")
	assert.Equal(t, genai.TypeString, schema.Properties["query"].Type)
	assert.Equal(t, "The search query to find information", schema.Properties["query"].Description)

	arr := convertToGeminiSchema(map[string]any{"type": "array"})
	require.NotNil(t, arr.Items)
	assert.Equal(t, genai.TypeString, arr.Items.Type)
}

func TestConvertGeminiMessagesSplitsSystem(t *testing.T) {
	contents, system := convertToGeminiMessages([]Message{SystemMessage("be brief"), UserMessage("hi")})
	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 1)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
}

func TestProviderFactory(t *testing.T) {
	p, err := ProviderGemini.APIKey("g-key")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, ModelGeminiFlash25, p.Model())

	p, err = ProviderDeepSeek.Model("deepseek-reasoner").APIKey("d-key")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, "deepseek-reasoner", p.Model())

	_, err = ProviderOpenAI.APIKey("")
	assert.Error(t, err)

	pt, err := ParseProviderType("Claude")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, pt)
	assert.Equal(t, "ANTHROPIC_API_KEY", pt.EnvVar())

	_, err = ParseProviderType("llama")
	assert.Error(t, err)
}
