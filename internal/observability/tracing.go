package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider around the turn and
// scheduler span points. The exporter is logger-backed; the core has no
// opinion on where spans ultimately ship.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TraceConfig configures the tracer's identity.
type TraceConfig struct {
	ServiceName string
	Logger      *Logger
}

// NewTracer builds a Tracer whose spans are reported through logger as they
// end, and installs it as the global TracerProvider.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	exporter := &logExporter{logger: cfg.Logger}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(provider)
	t := &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
	return t, provider.Shutdown
}

// Start begins a span named name with attrs, returning the child context
// and the span (callers must End it).
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed and attaches err, the pattern every
// Turn/Scheduler boundary uses on its error path.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// logExporter is a minimal sdktrace.SpanExporter that routes finished spans
// through the runtime's structured logger instead of a network collector;
// swap in otlptracegrpc when a real backend is wired.
type logExporter struct {
	logger *Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.logger == nil {
		return nil
	}
	for _, s := range spans {
		e.logger.Debug(ctx, "span",
			"name", s.Name(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status", s.Status().Code.String(),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error { return nil }
