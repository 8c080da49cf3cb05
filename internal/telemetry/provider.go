package telemetry

import (
	"context"

	"github.com/benvon/stylesync/internal/services/ai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/benvon/stylesync/internal/telemetry"

// TracedProvider records a span around every AI capability call
type TracedProvider struct {
	next   ai.Provider
	tracer trace.Tracer
}

// TraceProvider wraps next. Spans go to the global tracer provider, so
// wrapping is harmless when tracing is disabled.
func TraceProvider(next ai.Provider) *TracedProvider {
	return &TracedProvider{next: next, tracer: otel.Tracer(instrumentationName)}
}

// Generate calls the wrapped provider inside an "ai.<operation>" span
func (p *TracedProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	ctx, span := p.tracer.Start(ctx, "ai."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ai.operation", req.Operation),
			attribute.Bool("ai.has_image", req.Image != nil),
			attribute.Bool("ai.json", req.JSON),
		),
	)
	defer span.End()

	response, err := p.next.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ai call failed")
		if ai.IsExternalServiceError(err) {
			span.SetAttributes(attribute.Bool("ai.external_service_error", true))
		}
		return "", err
	}
	span.SetAttributes(attribute.Int("ai.response_length", len(response)))
	return response, nil
}
