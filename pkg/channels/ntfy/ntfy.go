// Package ntfy publishes messages to an ntfy server using its JSON API.
//
// Messages are POSTed to the server root with the topic in the body rather
// than to {base}/{topic}, so title, tags, priority, click, attach and actions
// all travel in one JSON document.
package ntfy

import (
	"context"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "ntfy"
	DefaultBaseURL = "https://ntfy.sh"

	MinPriority = 1
	MaxPriority = 5
)

// Config configures an ntfy channel.
type Config struct {
	Topic   string
	BaseURL string

	// Priority is 0 when unset, otherwise 1 (min) through 5 (max). A
	// configured priority of 0 is rejected by ParseConfig.
	Priority int
	Tags     []string
	Click    string
	Attach   string
	// Actions is passed through to the server unchanged.
	Actions any

	// Token is sent as a bearer token for protected topics.
	Token string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "topic"); err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: channel.BaseURL(raw, DefaultBaseURL),
		Click:   raw.StringOr("click", ""),
		Attach:  raw.StringOr("attach", ""),
		Token:   raw.StringOr("token", ""),
	}
	cfg.Topic, _ = raw.String("topic")
	cfg.Tags, _ = raw.Strings("tags")
	cfg.Actions, _ = raw.Lookup("actions")

	p, ok, err := raw.Int("priority")
	if err != nil {
		return Config{}, nerrors.NewConfigError(Name, err.Error())
	}
	if ok {
		if p < MinPriority || p > MaxPriority {
			return Config{}, nerrors.NewConfigErrorf(Name, "priority %d out of range %d-%d", p, MinPriority, MaxPriority)
		}
		cfg.Priority = p
	}
	return cfg, nil
}

type payload struct {
	Topic    string   `json:"topic"`
	Message  string   `json:"message"`
	Title    string   `json:"title"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Click    string   `json:"click,omitempty"`
	Attach   string   `json:"attach,omitempty"`
	Actions  any      `json:"actions,omitempty"`
}

type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates an ntfy channel.
func New(cfg Config, deps channel.Deps) (*Channel, error) {
	if cfg.Topic == "" {
		return nil, nerrors.NewMissingFieldsError(Name, []string{"topic"})
	}
	if cfg.Priority != 0 && (cfg.Priority < MinPriority || cfg.Priority > MaxPriority) {
		return nil, nerrors.NewConfigErrorf(Name, "priority %d out of range %d-%d", cfg.Priority, MinPriority, MaxPriority)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := webhook.New(Name, deps.Client(), deps.Log())
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	return &Channel{cfg: cfg, client: client, logger: deps.Log()}, nil
}

// Factory builds an ntfy channel from generic configuration.
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

// URL returns the JSON publish endpoint. The topic travels in the body.
func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/")
}

func (c *Channel) buildPayload(content, title string) payload {
	if title == "" {
		title = channel.DefaultTitle
	}
	return payload{
		Topic:    c.cfg.Topic,
		Message:  content,
		Title:    title,
		Priority: c.cfg.Priority,
		Tags:     c.cfg.Tags,
		Click:    c.cfg.Click,
		Attach:   c.cfg.Attach,
		Actions:  c.cfg.Actions,
	}
}

// Send publishes the message.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	if err := c.client.PostJSON(ctx, c.URL(), c.buildPayload(content, title), nil); err != nil {
		return err
	}
	c.logger.Debug("ntfy send successfully", "topic", c.cfg.Topic)
	return nil
}
