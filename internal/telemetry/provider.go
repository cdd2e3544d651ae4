package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a tracer provider that logs finished spans and, when
// reporter is non-nil, reports operation steps to it.
func NewProvider(reporter StepReporter) *Provider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(spanLogger{}),
	}
	if reporter != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(&stepSpanProcessor{observer: newStepObserver(reporter)}))
	}
	return &Provider{tp: sdktrace.NewTracerProvider(opts...)}
}

// Install makes p the global tracer provider.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.tp)
}

func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// spanLogger writes every finished span to slog at debug level.
type spanLogger struct{}

func (spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	args := []any{
		"span", span.Name(),
		"duration", span.EndTime().Sub(span.StartTime()),
	}
	for _, attr := range span.Attributes() {
		if attr.Key == PlanJSONKey {
			continue
		}
		args = append(args, string(attr.Key), attr.Value.Emit())
	}
	if status := span.Status(); status.Code == codes.Error {
		args = append(args, "err", status.Description)
	}
	slog.DebugContext(ctx, "Span finished.", args...)
}

func (spanLogger) Shutdown(context.Context) error   { return nil }
func (spanLogger) ForceFlush(context.Context) error { return nil }

// stepSpanProcessor maps operation root spans to plans and their children
// to step transitions.
type stepSpanProcessor struct {
	observer *stepObserver
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if span.Parent().IsValid() {
		if isStep(span) {
			p.observer.onStart(span.Name())
		}
		return
	}
	raw := attributeValue(span.Attributes(), PlanJSONKey)
	if raw == "" {
		return
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return
	}
	p.observer.onPlan(plan)
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if !span.Parent().IsValid() || !isStep(span) {
		return
	}
	status := span.Status()
	p.observer.onEnd(span.Name(), status.Code == codes.Error, status.Description)
}

func (p *stepSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *stepSpanProcessor) ForceFlush(context.Context) error { return nil }

// isStep reports whether span is an operation step rather than a request
// traced below one. Requests are client spans.
func isStep(span interface{ SpanKind() trace.SpanKind }) bool {
	return span.SpanKind() != trace.SpanKindClient
}

func attributeValue(attrs []attribute.KeyValue, key attribute.Key) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return strings.TrimSpace(attr.Value.AsString())
		}
	}
	return ""
}
