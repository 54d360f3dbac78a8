// Package channel defines the contract every notification backend implements,
// plus the small helpers adapters share: typed config access, URL joining and
// the dependency bundle handed to factories.
package channel

import (
	"context"
	"net/http"
	"time"

	"github.com/kart-io/notifykit/pkg/logger"
)

// DefaultTitle is used by adapters whose payload carries a title field when
// the caller supplies none.
const DefaultTitle = "消息提醒"

// Channel is a single notification backend.
//
// An empty title means no title was supplied. Send returns a
// CHANNEL_DELIVERY NotifyError when the backend cannot be reached or rejects
// the message.
type Channel interface {
	// Name returns the canonical lowercase channel name.
	Name() string
	// Send delivers one message and blocks until the backend answers.
	Send(ctx context.Context, content, title string) error
}

// ConcurrentSender is implemented by channels that have a native
// non-blocking send path.
type ConcurrentSender interface {
	SendConcurrently(ctx context.Context, content, title string) <-chan error
}

// SendConcurrently starts a send and returns a channel that yields exactly one
// result. Channels implementing ConcurrentSender are used directly; all
// others run Send on a new goroutine.
func SendConcurrently(ctx context.Context, ch Channel, content, title string) <-chan error {
	if cs, ok := ch.(ConcurrentSender); ok {
		return cs.SendConcurrently(ctx, content, title)
	}
	done := make(chan error, 1)
	go func() {
		done <- ch.Send(ctx, content, title)
	}()
	return done
}

// Deps carries the shared collaborators passed to every Factory.
type Deps struct {
	Logger     logger.Logger
	HTTPClient *http.Client
}

// DefaultHTTPTimeout bounds requests made with the client returned by
// Deps.Client when none was supplied.
const DefaultHTTPTimeout = 30 * time.Second

// Log returns the configured logger, or logger.Discard.
func (d Deps) Log() logger.Logger {
	return logger.OrDiscard(d.Logger)
}

// Client returns the configured HTTP client, or a fresh one with
// DefaultHTTPTimeout.
func (d Deps) Client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// Factory builds a Channel from its generic configuration.
type Factory func(ctx context.Context, cfg Config, deps Deps) (Channel, error)
