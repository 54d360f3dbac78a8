// Package pushdeer sends notifications through the PushDeer push API.
package pushdeer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "pushdeer"
	DefaultBaseURL = "https://api2.pushdeer.com"
)

// MessageType selects how PushDeer renders a message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeMarkdown MessageType = "markdown"
	TypeImage    MessageType = "image"
)

func (t MessageType) valid() bool {
	switch t {
	case TypeText, TypeMarkdown, TypeImage:
		return true
	}
	return false
}

// Config configures a PushDeer channel.
type Config struct {
	Token   string
	BaseURL string
	Type    MessageType
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token"); err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: channel.BaseURL(raw, DefaultBaseURL),
		Type:    MessageType(strings.ToLower(raw.StringOr("type", string(TypeMarkdown)))),
	}
	cfg.Token, _ = raw.String("token")
	return cfg, nil
}

type response struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func checkResponse(r response) error {
	if r.Code != 0 {
		return fmt.Errorf("pushdeer code %d: %s", r.Code, r.Error)
	}
	return nil
}

type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates a PushDeer channel. An empty Type defaults to markdown.
func New(cfg Config, deps channel.Deps) (*Channel, error) {
	if cfg.Token == "" {
		return nil, nerrors.NewMissingFieldsError(Name, []string{"token"})
	}
	if cfg.Type == "" {
		cfg.Type = TypeMarkdown
	}
	if !cfg.Type.valid() {
		return nil, nerrors.NewConfigErrorf(Name, "invalid type %q: want text, markdown or image", cfg.Type)
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

// Factory builds a PushDeer channel from generic configuration.
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
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/message/push")
}

func (c *Channel) query(content, title string) url.Values {
	q := url.Values{
		"pushkey": {c.cfg.Token},
		"type":    {string(c.cfg.Type)},
	}
	switch c.cfg.Type {
	case TypeText:
		if title != "" {
			content = title + "\n" + content
		}
		q.Set("text", content)
	case TypeImage:
		q.Set("text", content)
	default:
		if title == "" {
			title = channel.DefaultTitle
		}
		q.Set("text", title)
		q.Set("desp", content)
	}
	return q
}

// Send issues the push request.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	if err := c.client.Get(ctx, c.URL(), c.query(content, title), webhook.CodeCheck(checkResponse)); err != nil {
		return err
	}
	c.logger.Debug("pushdeer send successfully", "type", c.cfg.Type)
	return nil
}
