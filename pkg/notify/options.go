package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

// Recorder observes every channel send. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordSend(ctx context.Context, channel string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordSend(context.Context, string, time.Duration, error) {}

// Option configures a Publisher.
type Option func(*options)

type options struct {
	logger         logger.Logger
	channels       []channel.Channel
	recorder       Recorder
	tracerProvider trace.TracerProvider
	registry       *Registry
	deps           channel.Deps
	breaker        *BreakerConfig
}

// WithLogger sets the publisher logger. Adapters built by FromSettings share
// it unless WithDeps supplies another.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChannels attaches channels at construction.
func WithChannels(chs ...channel.Channel) Option {
	return func(o *options) { o.channels = append(o.channels, chs...) }
}

// WithRecorder installs a metrics hook.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithRegistry selects the registry FromSettings resolves against.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDeps sets the dependencies FromSettings hands to channel factories.
func WithDeps(d channel.Deps) Option {
	return func(o *options) { o.deps = d }
}

// WithBreakers wraps every channel given at construction, including those
// resolved by FromSettings, in a circuit breaker. Channels attached later
// with Add are not wrapped.
func WithBreakers(cfg BreakerConfig) Option {
	return func(o *options) { o.breaker = &cfg }
}
