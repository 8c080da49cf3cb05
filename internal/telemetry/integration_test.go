package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// An AI call made while serving a request is recorded as a child of the
// request span, and an incoming traceparent carries through to it
func TestRequestSpanParentsAISpan(t *testing.T) {
	t.Parallel()

	const incomingTrace = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
	}{
		{"new trace", ""},
		{"incoming trace", "00-" + incomingTrace + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

			provider := &TracedProvider{
				next: ai.ProviderFunc(func(ctx context.Context, req ai.Request) (string, error) {
					return `{"selected_item_ids":[]}`, nil
				}),
				tracer: tp.Tracer(instrumentationName),
			}

			r := mux.NewRouter()
			r.Use(otelmux.Middleware(ServiceName,
				otelmux.WithTracerProvider(tp),
				otelmux.WithPropagators(propagation.TraceContext{}),
			))
			r.HandleFunc("/api/v1/recommendations", func(w http.ResponseWriter, r *http.Request) {
				if _, err := provider.Generate(r.Context(), ai.Request{Operation: "recommend_outfit"}); err != nil {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				w.WriteHeader(http.StatusOK)
			}).Methods("POST")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status OK, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("Expected a request span and an AI span, got %d spans", len(spans))
			}
			// The AI span ends first
			aiSpan, requestSpan := spans[0], spans[1]
			if aiSpan.Name != "ai.recommend_outfit" {
				t.Errorf("Expected AI span first, got %q", aiSpan.Name)
			}
			if aiSpan.Parent.SpanID() != requestSpan.SpanContext.SpanID() {
				t.Error("Expected the AI span to be a child of the request span")
			}
			if aiSpan.SpanContext.TraceID() != requestSpan.SpanContext.TraceID() {
				t.Error("Expected both spans to share a trace")
			}
			if tt.traceParent != "" && requestSpan.SpanContext.TraceID().String() != incomingTrace {
				t.Errorf("Expected incoming trace id, got %s", requestSpan.SpanContext.TraceID())
			}
		})
	}
}
