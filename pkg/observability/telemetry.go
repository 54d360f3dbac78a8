// Package observability wires notifykit dispatch into OpenTelemetry and
// Prometheus. Both Telemetry and PromRecorder satisfy notify.Recorder.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
)

const instrumentationName = "github.com/kart-io/notifykit"

// Config configures Telemetry.
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers"`
	Insecure       bool              `yaml:"insecure"`
	SampleRate     float64           `yaml:"sample_rate"`
}

// DefaultConfig returns a disabled configuration with sensible values.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "notifykit",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// Option customises Telemetry construction.
type Option func(*settings)

type settings struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	setGlobal    bool
}

// WithSpanExporter replaces the OTLP exporter.
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(s *settings) { s.spanExporter = e }
}

// WithMetricReader attaches a metric reader to the meter provider.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(s *settings) { s.metricReader = r }
}

// WithGlobal installs the providers and W3C propagators as otel globals.
func WithGlobal() Option {
	return func(s *settings) { s.setGlobal = true }
}

// Telemetry holds the tracer and meter providers plus the dispatch
// instruments.
type Telemetry struct {
	cfg            Config
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	shutdowns      []func(context.Context) error

	sent     metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

// New builds Telemetry. A disabled config yields no-op providers.
func New(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	t := &Telemetry{cfg: cfg}

	if !cfg.Enabled {
		t.tracerProvider = noop.NewTracerProvider()
		t.meterProvider = otel.GetMeterProvider()
		return t, t.initInstruments()
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	exporter := s.spanExporter
	if exporter == nil {
		clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		var err error
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(clientOpts...))
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
	}

	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	t.tracerProvider = tp
	t.shutdowns = append(t.shutdowns, tp.Shutdown)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.metricReader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(s.metricReader))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	t.meterProvider = mp
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	if s.setGlobal {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
	}
	return t, t.initInstruments()
}

func (t *Telemetry) initInstruments() error {
	meter := t.meterProvider.Meter(instrumentationName)
	var err error
	t.sent, err = meter.Int64Counter("notifykit.sends",
		metric.WithDescription("Channel sends attempted"))
	if err != nil {
		return fmt.Errorf("create sends counter: %w", err)
	}
	t.failed, err = meter.Int64Counter("notifykit.send_failures",
		metric.WithDescription("Channel sends that failed"))
	if err != nil {
		return fmt.Errorf("create failures counter: %w", err)
	}
	t.duration, err = meter.Float64Histogram("notifykit.send_duration",
		metric.WithDescription("Duration of channel sends"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}
	return nil
}

// TracerProvider returns the provider to hand to notify.WithTracerProvider.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// RecordSend implements notify.Recorder.
func (t *Telemetry) RecordSend(ctx context.Context, channel string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("status", status(err)),
	)
	t.sent.Add(ctx, 1, attrs)
	t.duration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		t.failed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("error_code", errorCode(err)),
		))
	}
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdowns {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func errorCode(err error) string {
	var ne *nerrors.NotifyError
	if errors.As(err, &ne) {
		return string(ne.Code)
	}
	return "unknown"
}
