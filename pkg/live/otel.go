package live

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for the gateway.
const defaultTracerName = "weft-live"

// TraceConfig configures write tracing.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "weft-live").
	TracerName string

	// IncludeValues records written payloads as span attributes. Payloads
	// may contain sensitive data, so this is off by default.
	IncludeValues bool

	// AttributeExtractor adds custom attributes to every write span.
	AttributeExtractor func(name string) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures write tracing.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithIncludeValues enables recording written payloads in spans.
func WithIncludeValues(include bool) TraceOption {
	return func(c *TraceConfig) {
		c.IncludeValues = include
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(fn func(name string) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.AttributeExtractor = fn
	}
}

// newTraceConfig resolves a tracer from the global provider. Configure the
// provider in main() before starting the gateway:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func newTraceConfig(opts ...TraceOption) TraceConfig {
	config := TraceConfig{
		TracerName: defaultTracerName,
	}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return config
}

// traceApply runs apply inside a span covering the full synchronous
// propagation of one write: the signal set, every subscriber notification,
// and every memo recompute it triggers.
func (tc *TraceConfig) traceApply(ctx context.Context, origin, name string, payload []byte, apply func() error) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.signal", name),
		attribute.String("weft.origin", origin),
		attribute.Int("weft.payload_bytes", len(payload)),
	}
	if tc.IncludeValues {
		attrs = append(attrs, attribute.String("weft.value", string(payload)))
	}
	if tc.AttributeExtractor != nil {
		attrs = append(attrs, tc.AttributeExtractor(name)...)
	}

	_, span := tc.tracer.Start(ctx, "weft.apply",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(time.Now()),
	)
	defer span.End()

	err := apply()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
