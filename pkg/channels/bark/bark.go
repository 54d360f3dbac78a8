// Package bark sends notifications to the Bark iOS app.
package bark

import (
	"context"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "bark"
	DefaultBaseURL = "https://api.day.app"
)

// Config configures a Bark channel.
type Config struct {
	Token   string
	BaseURL string

	Badge *int
	Sound string
	Icon  string
	Group string
	URL   string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token"); err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: channel.BaseURL(raw, DefaultBaseURL),
		Sound:   raw.StringOr("sound", ""),
		Icon:    raw.StringOr("icon", ""),
		Group:   raw.StringOr("group", ""),
		URL:     raw.StringOr("url", ""),
	}
	cfg.Token, _ = raw.String("token")
	badge, ok, err := raw.Int("badge")
	if err != nil {
		return Config{}, nerrors.NewConfigError(Name, err.Error())
	}
	if ok {
		cfg.Badge = &badge
	}
	return cfg, nil
}

type payload struct {
	Body  string `json:"body"`
	Title string `json:"title"`
	Badge *int   `json:"badge,omitempty"`
	Sound string `json:"sound,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Group string `json:"group,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Channel delivers messages through the Bark push API.
type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates a Bark channel.
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

// Factory builds a Bark channel from generic configuration.
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

// Config returns the channel configuration.
func (c *Channel) Config() Config { return c.cfg }

// URL returns the push endpoint.
func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/"+c.cfg.Token)
}

func (c *Channel) buildPayload(content, title string) payload {
	if title == "" {
		title = channel.DefaultTitle
	}
	return payload{
		Body:  content,
		Title: title,
		Badge: c.cfg.Badge,
		Sound: c.cfg.Sound,
		Icon:  c.cfg.Icon,
		Group: c.cfg.Group,
		URL:   c.cfg.URL,
	}
}

// Send posts the message to Bark.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	if err := c.client.PostJSON(ctx, c.URL(), c.buildPayload(content, title), nil); err != nil {
		return err
	}
	c.logger.Debug("bark send successfully")
	return nil
}
