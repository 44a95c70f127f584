package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelBackendReplaysTree(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	b := NewOTelBackendWithExporter("scout-test", exp)
	defer func() { _ = b.Shutdown(context.Background()) }()

	tr := sampleTrace()
	require.NoError(t, b.Export(context.Background(), tr))

	spans := exp.GetSpans()
	require.Len(t, spans, 3)

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	root := byName["agent_turn"]
	decide := byName["model.decide"]
	search := byName["web_search"]

	assert.Equal(t, root.SpanContext.SpanID(), decide.Parent.SpanID())
	assert.Equal(t, root.SpanContext.SpanID(), search.Parent.SpanID())
	assert.Equal(t, codes.Error, search.Status.Code)
	assert.Equal(t, "unreachable", search.Status.Description)
	assert.Equal(t, codes.Ok, decide.Status.Code)
	assert.True(t, root.StartTime.Equal(tr.Root.StartTime))
	assert.True(t, root.EndTime.Equal(tr.Root.EndTime))
}

func TestOTelBackendStdout(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewOTelBackend(context.Background(), "scout-test", "", &buf)
	require.NoError(t, err)
	defer func() { _ = b.Shutdown(context.Background()) }()

	require.NoError(t, b.Export(context.Background(), sampleTrace()))
	assert.Contains(t, buf.String(), "agent_turn")
}

func TestOTelBackendEmptyTrace(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	b := NewOTelBackendWithExporter("scout-test", exp)
	require.NoError(t, b.Export(context.Background(), Trace{ID: "empty"}))
	assert.Empty(t, exp.GetSpans())
}
