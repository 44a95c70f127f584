// Langfuse backend using the public batch ingestion API.
//
// Information Hiding:
// - Ingestion event format (trace-create, span-create, generation-create)
// - Basic-auth handling with public/secret key pair
// - Partial failure (HTTP 207) detection

package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultLangfuseHost is the Langfuse cloud endpoint.
const DefaultLangfuseHost = "https://cloud.langfuse.com"

const langfuseIngestionPath = "/api/public/ingestion"

// LangfuseBackend uploads traces to a Langfuse server.
type LangfuseBackend struct {
	host      string
	publicKey string
	secretKey string
	client    *http.Client
	now       func() time.Time
}

// NewLangfuseBackend creates a Langfuse backend. An empty host uses the
// cloud endpoint; a nil client gets a 10 second timeout.
func NewLangfuseBackend(host, publicKey, secretKey string, client *http.Client) *LangfuseBackend {
	if host == "" {
		host = DefaultLangfuseHost
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LangfuseBackend{
		host:      strings.TrimRight(host, "/"),
		publicKey: publicKey,
		secretKey: secretKey,
		client:    client,
		now:       time.Now,
	}
}

// Name returns the backend name.
func (b *LangfuseBackend) Name() string { return "langfuse" }

type langfuseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"body"`
}

type langfuseTrace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type langfuseObservation struct {
	ID                  string         `json:"id"`
	TraceID             string         `json:"traceId"`
	ParentObservationID string         `json:"parentObservationId,omitempty"`
	Name                string         `json:"name"`
	StartTime           time.Time      `json:"startTime"`
	EndTime             time.Time      `json:"endTime"`
	Input               any            `json:"input,omitempty"`
	Output              any            `json:"output,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Level               string         `json:"level"`
	StatusMessage       string         `json:"statusMessage,omitempty"`
	Model               string         `json:"model,omitempty"`
	Usage               any            `json:"usage,omitempty"`
}

type langfuseResponse struct {
	Errors []struct {
		ID      string `json:"id"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Export uploads the trace and its observations in a single batch.
func (b *LangfuseBackend) Export(ctx context.Context, t Trace) error {
	payload, err := json.Marshal(map[string]any{"batch": b.batch(t)})
	if err != nil {
		return errors.Wrap(err, "marshal langfuse batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+langfuseIngestionPath, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build langfuse request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(b.publicKey, b.secretKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "langfuse request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read langfuse response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("langfuse returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed langfuseResponse
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		return errors.Errorf("langfuse rejected %d event(s), first %s: %d %s",
			len(parsed.Errors), first.ID, first.Status, first.Message)
	}
	return nil
}

func (b *LangfuseBackend) batch(t Trace) []langfuseEvent {
	ts := b.now().UTC()
	traceTime := t.StartTime
	if traceTime.IsZero() {
		traceTime = ts
	}

	events := []langfuseEvent{{
		ID:        uuid.NewString(),
		Type:      "trace-create",
		Timestamp: ts,
		Body: langfuseTrace{
			ID:        t.ID,
			Name:      t.Name,
			Timestamp: traceTime,
			Input:     t.Input,
			Output:    t.Output,
			Metadata:  t.Metadata,
		},
	}}

	t.Root.Walk(func(s *Span, _ int) {
		obs := langfuseObservation{
			ID:                  s.ID,
			TraceID:             t.ID,
			ParentObservationID: s.ParentID,
			Name:                s.Name,
			StartTime:           s.StartTime,
			EndTime:             s.EndTime,
			Input:               s.Input,
			Output:              s.Output,
			Metadata:            s.Metadata,
			Level:               "DEFAULT",
			StatusMessage:       s.StatusMessage,
		}
		if s.Status == StatusError {
			obs.Level = "ERROR"
		}

		eventType := "span-create"
		if s.Kind == KindGeneration {
			eventType = "generation-create"
			if m, ok := s.Metadata["model"].(string); ok {
				obs.Model = m
			}
			obs.Usage = s.Metadata["usage"]
		}

		events = append(events, langfuseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: ts,
			Body:      obs,
		})
	})
	return events
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
