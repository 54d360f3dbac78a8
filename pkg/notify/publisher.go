// Package notify fans a message out to an ordered set of notification
// channels.
//
// Publish walks the channels in attach order and stops at the first failure.
// PublishConcurrently sends to every channel at once, waits for all of them and
// reports every failure in a *errors.DispatchError.
package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const tracerName = "github.com/kart-io/notifykit/pkg/notify"

// Publisher dispatches messages to its channels.
//
// Add may be called at any time, but dispatch works on a snapshot taken when
// Publish or PublishConcurrently starts; channels added mid-dispatch are only
// seen by later calls.
type Publisher struct {
	mu       sync.RWMutex
	channels []channel.Channel

	logger   logger.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// New creates a Publisher.
func New(opts ...Option) *Publisher {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return newPublisher(o)
}

func newPublisher(o *options) *Publisher {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	rec := o.recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	p := &Publisher{
		logger:   logger.OrDiscard(o.logger),
		recorder: rec,
		tracer:   tp.Tracer(tracerName),
	}
	chs := o.channels
	if o.breaker != nil {
		cfg := *o.breaker
		if cfg.Logger == nil {
			cfg.Logger = o.logger
		}
		chs = make([]channel.Channel, 0, len(o.channels))
		for _, ch := range o.channels {
			if ch != nil {
				chs = append(chs, WithBreaker(ch, cfg))
			}
		}
	}
	p.Add(chs...)
	return p
}

// Add appends channels. Nil channels are ignored; duplicates are kept.
func (p *Publisher) Add(chs ...channel.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range chs {
		if ch == nil {
			continue
		}
		p.channels = append(p.channels, ch)
	}
}

// Channels returns a copy of the channel list in attach order.
func (p *Publisher) Channels() []channel.Channel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]channel.Channel(nil), p.channels...)
}

// Len returns the number of attached channels.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}

// Names returns the channel names in attach order.
func (p *Publisher) Names() []string {
	chs := p.Channels()
	names := make([]string, len(chs))
	for i, ch := range chs {
		names[i] = ch.Name()
	}
	return names
}

// Publish sends to each channel in order and returns the first error
// unchanged. Channels after the failing one are not called.
func (p *Publisher) Publish(ctx context.Context, content, title string) error {
	chs := p.Channels()
	id := uuid.NewString()
	ctx, span := p.startDispatch(ctx, id, len(chs), false)
	defer span.End()

	for i, ch := range chs {
		err := p.observe(ctx, id, ch, func(ctx context.Context) error {
			return ch.Send(ctx, content, title)
		})
		if err != nil {
			p.logger.Error("publish stopped at failing channel",
				"dispatch_id", id, "channel", ch.Name(), "index", i, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	p.logger.Debug("publish finished", "dispatch_id", id, "channels", len(chs))
	return nil
}

// PublishConcurrently sends to every channel at once and waits for all of
// them. Failures are collected into a *errors.DispatchError in attach order.
func (p *Publisher) PublishConcurrently(ctx context.Context, content, title string) error {
	chs := p.Channels()
	id := uuid.NewString()
	ctx, span := p.startDispatch(ctx, id, len(chs), true)
	defer span.End()

	errs := make([]error, len(chs))
	var wg sync.WaitGroup
	for i, ch := range chs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.observe(ctx, id, ch, func(ctx context.Context) error {
				if cs, ok := ch.(channel.ConcurrentSender); ok {
					return <-cs.SendConcurrently(ctx, content, title)
				}
				return ch.Send(ctx, content, title)
			})
		}()
	}
	wg.Wait()

	dispatchErr := nerrors.NewDispatchError()
	for i, err := range errs {
		dispatchErr.Add(i, chs[i].Name(), err)
	}
	if err := dispatchErr.ErrorOrNil(); err != nil {
		p.logger.Error("concurrent publish had failures",
			"dispatch_id", id, "failed", dispatchErr.Count(), "channels", len(chs))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.logger.Debug("concurrent publish finished", "dispatch_id", id, "channels", len(chs))
	return nil
}

// Close closes every channel that implements io.Closer and joins their
// errors. The channel list is left intact.
func (p *Publisher) Close() error {
	var errs []error
	for _, ch := range p.Channels() {
		c, ok := ch.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			p.logger.Warn("failed to close channel", "channel", ch.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) startDispatch(ctx context.Context, id string, n int, concurrent bool) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "notify.publish", trace.WithAttributes(
		attribute.String("notify.dispatch_id", id),
		attribute.Int("notify.channels", n),
		attribute.Bool("notify.concurrent", concurrent),
	))
}

func (p *Publisher) observe(ctx context.Context, id string, ch channel.Channel, send func(context.Context) error) error {
	name := ch.Name()
	ctx, span := p.tracer.Start(ctx, "notify.send", trace.WithAttributes(
		attribute.String("notify.dispatch_id", id),
		attribute.String("notify.channel", name),
	))
	defer span.End()

	start := time.Now()
	err := send(ctx)
	elapsed := time.Since(start)
	p.recorder.RecordSend(ctx, name, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.logger.Debug("channel send ok", "dispatch_id", id, "channel", name, "duration", elapsed)
	return nil
}
