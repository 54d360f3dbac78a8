// Package channeltest provides a recording Channel for tests.
package channeltest

import (
	"context"
	"sync"
	"time"
)

// Call is one recorded Send.
type Call struct {
	Content string
	Title   string
	At      time.Time
}

// Channel records every Send and optionally fails or delays.
type Channel struct {
	name string

	mu     sync.Mutex
	err    error
	delay  time.Duration
	calls  []Call
	closed int
	log    *Log
}

// New creates a recording channel named name.
func New(name string) *Channel {
	return &Channel{name: name}
}

// WithError makes every Send return err.
func (c *Channel) WithError(err error) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// WithDelay makes every Send sleep for d, or until the context is done.
func (c *Channel) WithDelay(d time.Duration) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithLog records the channel's name into l on every Send, so tests can
// assert ordering across several channels.
func (c *Channel) WithLog(l *Log) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l
	return c
}

// Name implements channel.Channel.
func (c *Channel) Name() string {
	return c.name
}

// Send implements channel.Channel.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Content: content, Title: title, At: time.Now()})
	delay, err, log := c.delay, c.err, c.log
	c.mu.Unlock()

	if log != nil {
		log.append(c.name)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Close counts calls so tests can assert publishers release resources.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Calls returns a copy of the recorded sends.
func (c *Channel) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount returns the number of recorded sends.
func (c *Channel) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Closed returns how many times Close was called.
func (c *Channel) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Reset clears recorded calls.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
	c.closed = 0
}

// Log is a shared, ordered record of channel invocations.
type Log struct {
	mu    sync.Mutex
	names []string
}

func (l *Log) append(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns the invocation order.
func (l *Log) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}
