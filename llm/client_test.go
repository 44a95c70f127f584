package llm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/scout/model"
	"github.com/richinex/scout/trace"
)

// scriptedProvider returns canned responses in order and records requests.
type scriptedProvider struct {
	responses []Response
	errs      []error
	requests  []Request
	block     bool
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if p.block {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return Response{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return Response{}, nil
}

func toolCall(name string, args map[string]any) ToolCall {
	raw, _ := json.Marshal(args)
	return ToolCall{Name: name, Arguments: raw}
}

func TestDecideToolsProtocol(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		want     model.Decision
		wantKind model.ErrorKind
		wantErr  bool
	}{
		{
			name: "text only is a direct answer",
			resp: Response{Content: "35"},
			want: model.DirectAnswer("35"),
		},
		{
			name: "tool call is a search request",
			resp: Response{ToolCalls: []ToolCall{toolCall("web_search", map[string]any{"query": "2022 World Cup winner"})}},
			want: model.SearchRequest("2022 World Cup winner"),
		},
		{
			name: "text and tool call prefers search",
			resp: Response{
				Content:   "Let me look that up.",
				ToolCalls: []ToolCall{toolCall("web_search", map[string]any{"query": "top news today"})},
			},
			want: model.SearchRequest("top news today"),
		},
		{
			name: "empty query argument falls back to user query",
			resp: Response{ToolCalls: []ToolCall{toolCall("web_search", map[string]any{})}},
			want: model.SearchRequest("What's today's top news?"),
		},
		{
			name:     "unknown tool is invalid",
			resp:     Response{ToolCalls: []ToolCall{toolCall("calculator", map[string]any{"x": 1})}},
			wantErr:  true,
			wantKind: model.KindInvalidResponse,
		},
		{
			name:     "neither text nor tool call is invalid",
			resp:     Response{Content: "   "},
			wantErr:  true,
			wantKind: model.KindInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{responses: []Response{tt.resp}}
			c := NewClient(p)

			got, err := c.Decide(context.Background(), "What's today's top news?")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, model.IsProviderError(err, tt.wantKind), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, p.requests, 1)
			require.Len(t, p.requests[0].Tools, 1)
			assert.Equal(t, "web_search", p.requests[0].Tools[0].Name)
			assert.Equal(t, RoleSystem, p.requests[0].Messages[0].Role)
		})
	}
}

func TestDecideJSONProtocol(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    model.Decision
	}{
		{"search action", `{"action":"search","query":"weather Berlin"}`, model.SearchRequest("weather Berlin")},
		{"fenced answer action", "```json\n{\"action\":\"answer\",\"answer\":\"Paris\"}\n```", model.DirectAnswer("Paris")},
		{"search without query", `{"action":"search"}`, model.SearchRequest("capital of France?")},
		{"plain text", "Paris is the capital.", model.DirectAnswer("Paris is the capital.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{responses: []Response{{Content: tt.content}}}
			c := NewClient(p, WithProtocol(ProtocolJSON))

			got, err := c.Decide(context.Background(), "capital of France?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, p.requests[0].Tools)
			assert.True(t, p.requests[0].JSONOutput)
		})
	}
}

func TestDecideJSONProtocolEmptyReply(t *testing.T) {
	c := NewClient(&scriptedProvider{responses: []Response{{}}}, WithProtocol(ProtocolJSON))
	_, err := c.Decide(context.Background(), "hi")
	assert.True(t, model.IsProviderError(err, model.KindInvalidResponse))
}

func TestDecideCustomSearchTool(t *testing.T) {
	p := &scriptedProvider{responses: []Response{{
		ToolCalls: []ToolCall{toolCall("lookup", map[string]any{"terms": "go generics"})},
	}}}
	c := NewClient(p, WithSearchTool(SearchTool{Name: "lookup", QueryParam: "terms"}))

	got, err := c.Decide(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, model.SearchRequest("go generics"), got)

	def := p.requests[0].Tools[0]
	assert.Equal(t, DefaultSearchTool().Description, def.Description)
	assert.Equal(t, []string{"terms"}, def.Parameters["required"])
}

func TestDecidePropagatesProviderError(t *testing.T) {
	perr := model.StatusError("scripted", 429, errors.New("quota"))
	c := NewClient(&scriptedProvider{errs: []error{perr}})

	_, err := c.Decide(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, model.IsProviderError(err, model.KindRateLimited))
}

func TestDecideTimeout(t *testing.T) {
	c := NewClient(&scriptedProvider{block: true}, WithTimeout(10*time.Millisecond))

	_, err := c.Decide(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, model.IsProviderError(err, model.KindTimeout), err.Error())
}

func TestSynthesizeIncludesResults(t *testing.T) {
	p := &scriptedProvider{responses: []Response{{Content: "  Argentina won.  "}}}
	c := NewClient(p)

	results := model.Results{
		{Title: "2022 FIFA World Cup", Snippet: "Argentina beat France on penalties.", URL: "https://example.com/wc"},
	}
	answer, err := c.Synthesize(context.Background(), "Who won?", results)
	require.NoError(t, err)
	assert.Equal(t, model.Answer("Argentina won."), answer)

	prompt := p.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "Who won?")
	assert.Contains(t, prompt, "1. 2022 FIFA World Cup")
	assert.Contains(t, prompt, "Source: https://example.com/wc")
	assert.Empty(t, p.requests[0].Tools)
}

func TestSynthesizeWithNoResults(t *testing.T) {
	p := &scriptedProvider{responses: []Response{{Content: "I don't have current data."}}}
	c := NewClient(p)

	answer, err := c.Synthesize(context.Background(), "latest news", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Contains(t, p.requests[0].Messages[1].Content, "returned no results")
}

func TestSynthesizeEmptyTextIsInvalid(t *testing.T) {
	c := NewClient(&scriptedProvider{responses: []Response{{Content: ""}}})
	_, err := c.Synthesize(context.Background(), "q", nil)
	assert.True(t, model.IsProviderError(err, model.KindInvalidResponse))
}

func TestModelCallsRecordGenerationSpans(t *testing.T) {
	p := &scriptedProvider{responses: []Response{
		{ToolCalls: []ToolCall{toolCall("web_search", map[string]any{"query": "x"})}, Usage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}},
		{Content: "done"},
	}}
	c := NewClient(p)

	rec := trace.NewRecorder("test", nil)
	ctx := trace.WithRecorder(context.Background(), rec)
	root := rec.StartSpan("agent_turn", trace.KindAgent, "q")

	_, err := c.Decide(ctx, "q")
	require.NoError(t, err)
	_, err = c.Synthesize(ctx, "q", nil)
	require.NoError(t, err)
	rec.EndSpan(root, "done", trace.StatusOK, "")

	children := rec.Trace().Root.Children
	require.Len(t, children, 2)

	decide := children[0]
	assert.Equal(t, "model.decide", decide.Name)
	assert.Equal(t, trace.KindGeneration, decide.Kind)
	assert.Equal(t, trace.StatusOK, decide.Status)
	assert.Equal(t, "scripted-1", decide.Metadata["model"])
	assert.Equal(t, "search_request", decide.Metadata["decision"])
	assert.NotNil(t, decide.Metadata["usage"])
	assert.IsType(t, Response{}, decide.Output)

	assert.Equal(t, "model.synthesize", children[1].Name)
	assert.Equal(t, 0, children[1].Metadata["result_count"])
}

func TestFailedDecisionClosesSpanWithError(t *testing.T) {
	c := NewClient(&scriptedProvider{responses: []Response{{}}})
	rec := trace.NewRecorder("test", nil)
	ctx := trace.WithRecorder(context.Background(), rec)

	_, err := c.Decide(ctx, "q")
	require.Error(t, err)

	span := rec.Trace().Root
	require.NotNil(t, span)
	assert.True(t, span.Ended())
	assert.Equal(t, trace.StatusError, span.Status)
	assert.Contains(t, span.StatusMessage, "invalid_response")
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("JSON")
	require.NoError(t, err)
	assert.Equal(t, ProtocolJSON, p)

	p, err = ParseProtocol("")
	require.NoError(t, err)
	assert.Equal(t, ProtocolTools, p)

	_, err = ParseProtocol("xml")
	assert.Error(t, err)
}
