// Package observability provides OpenTelemetry tracing, metrics, and audit
// logging for the repair pipeline.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for all pipeline spans.
const TracerName = "github.com/buildmend/mend"

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "mend")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "mend",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kind values for pipeline stages.
const (
	SpanKindSession  = "session"
	SpanKindBuild    = "build"
	SpanKindClassify = "classify"
	SpanKindQuickFix = "quickfix"
	SpanKindLLM      = "llm"
)

// StartSessionSpan starts the root span for one repair session.
func StartSessionSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "repair.session",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mend.span.kind", SpanKindSession),
			attribute.Int("repair.file_count", fileCount),
		),
	)
}

// RecordSessionResult records the terminal state of a session on its span.
func RecordSessionResult(span trace.Span, outcome string, success bool, attempts int) {
	span.SetAttributes(
		attribute.String("repair.outcome", outcome),
		attribute.Bool("repair.success", success),
		attribute.Int("repair.attempts", attempts),
	)
	if !success {
		span.SetStatus(codes.Error, outcome)
	}
}

// StartBuildSpan starts a span for one build validation.
func StartBuildSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "build.validate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mend.span.kind", SpanKindBuild),
			attribute.Int("build.attempt", attempt),
		),
	)
}

// RecordBuildResult records the build outcome on a span.
func RecordBuildResult(span trace.Span, success bool, errorCount int) {
	span.SetAttributes(
		attribute.Bool("build.success", success),
		attribute.Int("build.error_count", errorCount),
	)
	if !success {
		span.SetStatus(codes.Error, "build failed")
	}
}

// StartClassifySpan starts a span for error classification.
func StartClassifySpan(ctx context.Context, outputBytes int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "classify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mend.span.kind", SpanKindClassify),
			attribute.Int("classify.output_bytes", outputBytes),
		),
	)
}

// StartQuickFixSpan starts a span for one quick-fix pass.
func StartQuickFixSpan(ctx context.Context, errorCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "quickfix.apply",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mend.span.kind", SpanKindQuickFix),
			attribute.Int("quickfix.error_count", errorCount),
		),
	)
}

// StartLLMSpan starts a span for a model call. The model served is only
// known from the response, so it is recorded by RecordLLMMetrics.
func StartLLMSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("mend.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
		),
	)
}

// RecordLLMMetrics records model call metrics on a span.
func RecordLLMMetrics(span trace.Span, model string, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// RecordError marks a span failed with the given error.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
