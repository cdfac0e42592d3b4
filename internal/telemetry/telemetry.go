// Package telemetry sets up OpenTelemetry tracing for the extraction pipeline.
// Spans are always created; they are exported only when an OTLP endpoint is
// configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/config"
)

// TracerName is the instrumentation scope for pipeline spans.
const TracerName = "scraper"

// Span attribute keys.
var (
	AttrEntryID  = attribute.Key("scraper.entry.id")
	AttrURL      = attribute.Key("scraper.url")
	AttrCategory = attribute.Key("scraper.category")
	AttrStage    = attribute.Key("scraper.stage")
	AttrMentions = attribute.Key("scraper.mentions")
)

// Provider owns the tracer provider and its shutdown.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init installs the global tracer provider.
func Init(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	name := cfg.ServiceName
	if name == "" {
		name = TracerName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the pipeline tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartStage starts an internal span for one pipeline stage.
func StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrStage.String(stage))
	return Tracer().Start(ctx, stage,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
