// Package chanify sends text notifications through a Chanify sender token.
package chanify

import (
	"context"
	"net/url"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "chanify"
	DefaultBaseURL = "https://api.chanify.net"
)

// Config configures a Chanify channel.
type Config struct {
	Token   string
	BaseURL string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token"); err != nil {
		return Config{}, err
	}
	token, _ := raw.String("token")
	return Config{Token: token, BaseURL: channel.BaseURL(raw, DefaultBaseURL)}, nil
}

type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates a Chanify channel.
func New(cfg Config, deps channel.Deps) (*Channel, error) {
	if cfg.Token == "" {
		return nil, nerrors.NewMissingFieldsError(Name, []string{"token"})
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Channel{
		cfg:    cfg,
		client: webhook.New(Name, deps.Client(), deps.Log()),
		logger: deps.Log(),
	}, nil
}

// Factory builds a Chanify channel from generic configuration.
func Factory(_ context.Context, raw channel.Config, deps channel.Deps) (channel.Channel, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	ch, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *Channel) Name() string { return Name }

func (c *Channel) Config() Config { return c.cfg }

func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/v1/sender/"+url.PathEscape(c.cfg.Token))
}

// Text joins title and content the way Chanify renders a single text blob.
func Text(content, title string) string {
	if title == "" {
		return content
	}
	return title + "\n" + content
}

// Send posts the message as form field "text".
func (c *Channel) Send(ctx context.Context, content, title string) error {
	form := url.Values{"text": {Text(content, title)}}
	if err := c.client.PostForm(ctx, c.URL(), form, nil); err != nil {
		return err
	}
	c.logger.Debug("chanify send successfully")
	return nil
}
