// Package console writes notifications to a terminal or any io.Writer.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const Name = "console"

// Config configures a console channel.
type Config struct {
	// Prefix is printed before the title line.
	Prefix string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	return Config{Prefix: raw.StringOr("prefix", "")}, nil
}

type Channel struct {
	cfg Config
	mu  sync.Mutex
}

// New creates a console channel.
func New(cfg Config) *Channel {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &Channel{cfg: cfg}
}

// Factory builds a console channel writing to stdout.
func Factory(_ context.Context, raw channel.Config, _ channel.Deps) (channel.Channel, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

func (c *Channel) Name() string { return Name }

func (c *Channel) Config() Config { return c.cfg }

// Format renders one message block.
func Format(prefix, content, title string) string {
	if title == "" {
		title = channel.DefaultTitle
	}
	var b strings.Builder
	b.WriteByte('\n')
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "📢 %s\n📝 %s\n%s\n", title, content, strings.Repeat("-", 50))
	return b.String()
}

func (c *Channel) Send(_ context.Context, content, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.cfg.Writer, Format(c.cfg.Prefix, content, title)); err != nil {
		return nerrors.NewDeliveryError(Name, 0, "write failed", err)
	}
	return nil
}
