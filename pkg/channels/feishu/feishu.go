// Package feishu sends rich-text posts to a Feishu (Lark) custom bot.
package feishu

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
	Name           = "feishu"
	DefaultBaseURL = "https://open.feishu.cn"
)

// Config configures a Feishu bot.
type Config struct {
	Token     string
	BaseURL   string
	AtAll     bool
	AtUserIDs []string
	Secret    string
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
	cfg.AtUserIDs, _ = raw.Strings("at_user_ids")
	return cfg, nil
}

type element struct {
	Tag    string `json:"tag"`
	Text   string `json:"text,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type post struct {
	Title   string      `json:"title"`
	Content [][]element `json:"content"`
}

type content struct {
	Post map[string]post `json:"post"`
}

type payload struct {
	Timestamp string  `json:"timestamp,omitempty"`
	Sign      string  `json:"sign,omitempty"`
	MsgType   string  `json:"msg_type"`
	Content   content `json:"content"`
}

type response struct {
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
	StatusCode int    `json:"StatusCode"`
}

func checkResponse(r response) error {
	if r.Code != 0 {
		return fmt.Errorf("feishu code %d: %s", r.Code, r.Msg)
	}
	if r.StatusCode != 0 {
		return fmt.Errorf("feishu status %d", r.StatusCode)
	}
	return nil
}

// Channel posts to a Feishu bot webhook.
type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
	now    func() time.Time
}

// New creates a Feishu channel.
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

// Factory builds a Feishu channel from generic configuration.
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

// URL returns the bot endpoint.
func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/open-apis/bot/v2/hook/"+url.PathEscape(c.cfg.Token))
}

func (c *Channel) buildPayload(text, title string) payload {
	if title == "" {
		title = channel.DefaultTitle
	}
	line := []element{{Tag: "text", Text: text}}
	if c.cfg.AtAll {
		line = append(line, element{Tag: "at", UserID: "all"})
	}
	for _, id := range c.cfg.AtUserIDs {
		line = append(line, element{Tag: "at", UserID: id})
	}
	p := payload{
		MsgType: "post",
		Content: content{Post: map[string]post{
			"zh_cn": {Title: title, Content: [][]element{line}},
		}},
	}
	if c.cfg.Secret != "" {
		ts := c.now().Unix()
		p.Timestamp = strconv.FormatInt(ts, 10)
		p.Sign = webhook.FeishuSign(ts, c.cfg.Secret)
	}
	return p
}

// Send posts the message.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	err := c.client.PostJSON(ctx, c.URL(), c.buildPayload(content, title), webhook.CodeCheck(checkResponse))
	if err != nil {
		return err
	}
	c.logger.Debug("feishu send successfully")
	return nil
}
