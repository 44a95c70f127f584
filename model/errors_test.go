package model

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		http.StatusUnauthorized:        KindAuth,
		http.StatusForbidden:           KindAuth,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusGatewayTimeout:      KindTimeout,
		http.StatusRequestTimeout:      KindTimeout,
		http.StatusInternalServerError: KindUnreachable,
		http.StatusBadGateway:          KindUnreachable,
		http.StatusBadRequest:          KindInvalidResponse,
		http.StatusNotFound:            KindInvalidResponse,
	}
	for status, want := range cases {
		assert.Equal(t, want, ClassifyHTTPStatus(status), "status %d", status)
	}
}

func TestClassifyTransportDeadline(t *testing.T) {
	err := ClassifyTransport("search", errors.Wrap(context.DeadlineExceeded, "get"))
	assert.True(t, IsProviderError(err, KindTimeout))
}

func TestClassifyTransportGenericIsUnreachable(t *testing.T) {
	err := ClassifyTransport("search", errors.New("connection refused"))
	assert.True(t, IsProviderError(err, KindUnreachable))
}

func TestClassifyTransportKeepsProviderError(t *testing.T) {
	orig := NewProviderError("gemini", KindAuth, nil)
	err := ClassifyTransport("gemini", errors.Wrap(orig, "decide"))

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuth, pe.Kind)
}

func TestProviderErrorMessage(t *testing.T) {
	err := StatusError("brave", http.StatusTooManyRequests, errors.New("slow down"))
	assert.Equal(t, "brave: rate_limited (status 429): slow down", err.Error())
}

func TestResultsTruncateAndFormat(t *testing.T) {
	r := Results{
		{Title: "A", Snippet: "first", URL: "https://a.example"},
		{Title: "B"},
		{Title: "C"},
	}
	assert.Len(t, r.Truncate(2), 2)
	assert.Len(t, r.Truncate(10), 3)

	out := r.Truncate(2).Format()
	assert.Contains(t, out, "1. A\n   first\n   Source: https://a.example")
	assert.Contains(t, out, "2. B")
	assert.Equal(t, "(no results)", Results{}.Format())
}

func TestDecisionConstructors(t *testing.T) {
	d := SearchRequest("today's top news")
	assert.True(t, d.IsSearch())
	assert.Equal(t, "search_request", d.Kind.String())

	a := DirectAnswer("4")
	assert.False(t, a.IsSearch())
	assert.Equal(t, "4", a.Text)
}
