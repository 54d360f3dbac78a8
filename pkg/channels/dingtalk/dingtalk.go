// Package dingtalk sends markdown messages to a DingTalk custom robot.
package dingtalk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "dingtalk"
	Alias          = "ding"
	DefaultBaseURL = "https://oapi.dingtalk.com"
)

// Config configures a DingTalk robot.
type Config struct {
	Token   string
	BaseURL string

	AtAll     bool
	AtMobiles []string
	AtUserIDs []string

	// Secret enables signed requests when the robot uses the "sign"
	// security setting.
	Secret string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token"); err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: channel.BaseURL(raw, DefaultBaseURL),
		Secret:  raw.StringOr("secret", ""),
	}
	cfg.Token, _ = raw.String("token")
	cfg.AtAll, _ = raw.Bool("at_all")
	cfg.AtMobiles, _ = raw.Strings("at_mobiles")
	cfg.AtUserIDs, _ = raw.Strings("at_user_ids")
	return cfg, nil
}

type markdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type at struct {
	IsAtAll   bool     `json:"isAtAll,omitempty"`
	AtMobiles []string `json:"atMobiles,omitempty"`
	AtUserIDs []string `json:"atUserIds,omitempty"`
}

type payload struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
	At       *at      `json:"at,omitempty"`
}

type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func checkResponse(r response) error {
	if r.ErrCode != 0 {
		return fmt.Errorf("dingtalk errcode %d: %s", r.ErrCode, r.ErrMsg)
	}
	return nil
}

// Channel posts to a DingTalk robot webhook.
type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
	now    func() time.Time
}

// New creates a DingTalk channel.
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
		now:    time.Now,
	}, nil
}

// Factory builds a DingTalk channel from generic configuration.
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

// URL returns the robot endpoint without signature parameters.
func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/robot/send?access_token="+url.QueryEscape(c.cfg.Token))
}

func (c *Channel) requestURL() string {
	u := c.URL()
	if c.cfg.Secret == "" {
		return u
	}
	ts := c.now().UnixMilli()
	return u + "&timestamp=" + strconv.FormatInt(ts, 10) + "&sign=" + url.QueryEscape(webhook.DingTalkSign(ts, c.cfg.Secret))
}

func (c *Channel) buildPayload(content, title string) payload {
	if title == "" {
		title = channel.DefaultTitle
	}
	p := payload{
		MsgType:  "markdown",
		Markdown: markdown{Title: title, Text: content},
	}
	if c.cfg.AtAll || len(c.cfg.AtMobiles) > 0 || len(c.cfg.AtUserIDs) > 0 {
		p.At = &at{IsAtAll: c.cfg.AtAll, AtMobiles: c.cfg.AtMobiles, AtUserIDs: c.cfg.AtUserIDs}
	}
	return p
}

// Send posts a markdown message.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	err := c.client.PostJSON(ctx, c.requestURL(), c.buildPayload(content, title), webhook.CodeCheck(checkResponse))
	if err != nil {
		return err
	}
	c.logger.Debug("dingtalk send successfully")
	return nil
}
