package notify

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sony/gobreaker"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

// BreakerConfig configures the circuit breaker put in front of a channel.
type BreakerConfig struct {
	// MaxRequests is the number of trial sends allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before a trial send.
	Timeout time.Duration
	// FailureThreshold is the failure ratio that trips the breaker.
	FailureThreshold float64
	// MinRequests is the number of sends needed before the ratio counts.
	MinRequests uint32

	Logger logger.Logger
}

// DefaultBreakerConfig returns conservative breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type breakerChannel struct {
	channel.Channel
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps ch so that repeated failures open a circuit and further
// sends fail fast with a CHANNEL_DELIVERY error wrapping
// gobreaker.ErrOpenState. The wrapper keeps the channel's name and Close.
func WithBreaker(ch channel.Channel, cfg BreakerConfig) channel.Channel {
	log := logger.OrDiscard(cfg.Logger)
	settings := gobreaker.Settings{
		Name:        ch.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "channel", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerChannel{Channel: ch, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerChannel) Send(ctx context.Context, content, title string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Channel.Send(ctx, content, title)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nerrors.NewDeliveryError(b.Name(), 0, "circuit breaker rejected send", err)
	}
	return err
}

func (b *breakerChannel) Close() error {
	if c, ok := b.Channel.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BreakerState reports the breaker state of a channel returned by
// WithBreaker, and false for any other channel.
func BreakerState(ch channel.Channel) (gobreaker.State, bool) {
	b, ok := ch.(*breakerChannel)
	if !ok {
		return gobreaker.StateClosed, false
	}
	return b.cb.State(), true
}
