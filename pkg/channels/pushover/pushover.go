// Package pushover sends notifications through the Pushover message API.
package pushover

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
	Name           = "pushover"
	DefaultBaseURL = "https://api.pushover.net"
)

// Config configures a Pushover channel. Token is the application token and
// User the user or group key.
type Config struct {
	Token   string
	User    string
	BaseURL string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token", "user"); err != nil {
		return Config{}, err
	}
	cfg := Config{BaseURL: channel.BaseURL(raw, DefaultBaseURL)}
	cfg.Token, _ = raw.String("token")
	cfg.User, _ = raw.String("user")
	return cfg, nil
}

type response struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

func checkResponse(r response) error {
	if r.Status != 1 {
		return fmt.Errorf("pushover status %d: %s", r.Status, strings.Join(r.Errors, "; "))
	}
	return nil
}

type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates a Pushover channel.
func New(cfg Config, deps channel.Deps) (*Channel, error) {
	var missing []string
	if cfg.Token == "" {
		missing = append(missing, "token")
	}
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return nil, nerrors.NewMissingFieldsError(Name, missing)
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

// Factory builds a Pushover channel from generic configuration.
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
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/1/messages.json")
}

// Send posts the message form.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	form := url.Values{
		"token":   {c.cfg.Token},
		"user":    {c.cfg.User},
		"message": {content},
	}
	if title != "" {
		form.Set("title", title)
	}
	if err := c.client.PostForm(ctx, c.URL(), form, webhook.CodeCheck(checkResponse)); err != nil {
		return err
	}
	c.logger.Debug("pushover send successfully")
	return nil
}
