package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	EnableConsole  bool
	SampleRate     float64
}

// Tracer provides distributed tracing capabilities
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
	config   *TracingConfig
}

// NewTracer creates a new tracer instance
func NewTracer(config *TracingConfig, logger *slog.Logger) (*Tracer, error) {
	// Create resource
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create exporters
	var exporters []sdktrace.SpanExporter

	if config.OTLPEndpoint != "" {
		otlpExporter, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		)
		if err != nil {
			logger.Warn("Failed to create OTLP exporter", "error", err)
		} else {
			exporters = append(exporters, otlpExporter)
		}
	}

	if config.EnableConsole {
		consoleExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			logger.Warn("Failed to create console exporter", "error", err)
		} else {
			exporters = append(exporters, consoleExporter)
		}
	}

	if len(exporters) == 0 {
		// Fallback to console exporter if no other exporters are available
		consoleExporter, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		exporters = append(exporters, consoleExporter)
	}

	// Create tracer provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporters[0]),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)

	// Set global tracer provider
	otel.SetTracerProvider(provider)

	tracer := provider.Tracer(config.ServiceName)

	return &Tracer{
		tracer:   tracer,
		provider: provider,
		logger:   logger,
		config:   config,
	}, nil
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string,
	opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// TracePass traces one rule evaluation pass
func (t *Tracer) TracePass(ctx context.Context, rulesEvaluated, alertsTriggered int,
	duration time.Duration, err error) {
	_, span := t.StartSpan(ctx, "engine.evaluate_pass")
	defer span.End()

	span.SetAttributes(
		attribute.Int("pass.rules_evaluated", rulesEvaluated),
		attribute.Int("pass.alerts_triggered", alertsTriggered),
		attribute.Int64("pass.duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// TraceRuleEvaluation traces a single rule evaluation
func (t *Tracer) TraceRuleEvaluation(ctx context.Context, ruleID int64, alertType string,
	matched bool, duration time.Duration, err error) {
	_, span := t.StartSpan(ctx, "engine.evaluate_rule")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("rule.id", ruleID),
		attribute.String("rule.alert_type", alertType),
		attribute.Bool("rule.matched", matched),
		attribute.Int64("rule.duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// TraceAnalytics traces an analytics operation
func (t *Tracer) TraceAnalytics(ctx context.Context, operation string, userID int64,
	duration time.Duration, err error) {
	_, span := t.StartSpan(ctx, "analytics."+operation)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("analytics.user_id", userID),
		attribute.Int64("analytics.duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown flushes and stops the tracer provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
