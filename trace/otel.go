package trace

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// maxAttributeBytes caps serialized input/output attributes.
const maxAttributeBytes = 4096

// OTelBackend replays recorded span trees into OpenTelemetry, keeping the
// original timestamps.
type OTelBackend struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewOTelBackend exports over OTLP/gRPC when endpoint is set, otherwise
// pretty-prints spans to w (stdout when w is nil).
func NewOTelBackend(ctx context.Context, serviceName, endpoint string, w io.Writer) (*OTelBackend, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	if endpoint != "" {
		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "otel otlp exporter")
		}
	} else {
		if w == nil {
			w = os.Stdout
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, "otel stdout exporter")
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "otel resource")
	}

	return newOTelBackend(serviceName, exp, res), nil
}

// NewOTelBackendWithExporter wraps an existing span exporter.
func NewOTelBackendWithExporter(serviceName string, exp sdktrace.SpanExporter) *OTelBackend {
	return newOTelBackend(serviceName, exp, nil)
}

func newOTelBackend(serviceName string, exp sdktrace.SpanExporter, res *resource.Resource) *OTelBackend {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exp)}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	return &OTelBackend{provider: tp, tracer: tp.Tracer(serviceName)}
}

// Name returns the backend name.
func (b *OTelBackend) Name() string { return "otel" }

// Export replays the span tree and forces the exporter to flush.
func (b *OTelBackend) Export(ctx context.Context, t Trace) error {
	if t.Root == nil {
		return nil
	}
	b.replay(ctx, t, t.Root)
	if err := b.provider.ForceFlush(ctx); err != nil {
		return errors.Wrap(err, "otel flush")
	}
	return nil
}

func (b *OTelBackend) replay(ctx context.Context, t Trace, s *Span) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.trace_id", t.ID),
		attribute.String("scout.span_id", s.ID),
		attribute.String("scout.kind", string(s.Kind)),
		attribute.String("scout.input", marshalAttribute(s.Input)),
		attribute.String("scout.output", marshalAttribute(s.Output)),
	}
	if m, ok := s.Metadata["model"].(string); ok {
		attrs = append(attrs, attribute.String("gen_ai.request.model", m))
	}

	spanCtx, span := b.tracer.Start(ctx, s.Name,
		oteltrace.WithTimestamp(s.StartTime),
		oteltrace.WithAttributes(attrs...),
	)
	for _, c := range s.Children {
		b.replay(spanCtx, t, c)
	}
	if s.Status == StatusError {
		span.SetStatus(codes.Error, s.StatusMessage)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(oteltrace.WithTimestamp(s.EndTime))
}

// Shutdown flushes and stops the exporter.
func (b *OTelBackend) Shutdown(ctx context.Context) error {
	return b.provider.Shutdown(ctx)
}

func marshalAttribute(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return truncate(s, maxAttributeBytes)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return truncate(string(raw), maxAttributeBytes)
}
