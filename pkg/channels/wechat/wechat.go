// Package wechat sends messages to a WeChat Work (WeCom) group robot.
package wechat

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kart-io/notifykit/internal/webhook"
	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "wechat"
	Alias          = "wecom"
	DefaultBaseURL = "https://qyapi.weixin.qq.com"
)

// Config configures a WeChat Work robot.
type Config struct {
	Token   string
	BaseURL string

	// Mentions are only honoured by the text message type; configuring any
	// switches the channel from markdown to text.
	MentionedList       []string
	MentionedMobileList []string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "token"); err != nil {
		return Config{}, err
	}
	cfg := Config{BaseURL: channel.BaseURL(raw, DefaultBaseURL)}
	cfg.Token, _ = raw.String("token")
	cfg.MentionedList, _ = raw.Strings("mentioned_list")
	cfg.MentionedMobileList, _ = raw.Strings("mentioned_mobile_list")
	return cfg, nil
}

type markdownBody struct {
	Content string `json:"content"`
}

type textBody struct {
	Content             string   `json:"content"`
	MentionedList       []string `json:"mentioned_list,omitempty"`
	MentionedMobileList []string `json:"mentioned_mobile_list,omitempty"`
}

type payload struct {
	MsgType  string        `json:"msgtype"`
	Markdown *markdownBody `json:"markdown,omitempty"`
	Text     *textBody     `json:"text,omitempty"`
}

type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func checkResponse(r response) error {
	if r.ErrCode != 0 {
		return fmt.Errorf("wechat errcode %d: %s", r.ErrCode, r.ErrMsg)
	}
	return nil
}

// Channel posts to a WeChat Work robot webhook.
type Channel struct {
	cfg    Config
	client *webhook.Client
	logger logger.Logger
}

// New creates a WeChat Work channel.
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

// Factory builds a WeChat Work channel from generic configuration.
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

// URL returns the robot endpoint.
func (c *Channel) URL() string {
	return channel.JoinURL(c.cfg.BaseURL, DefaultBaseURL, "/cgi-bin/webhook/send?key="+url.QueryEscape(c.cfg.Token))
}

func (c *Channel) hasMentions() bool {
	return len(c.cfg.MentionedList) > 0 || len(c.cfg.MentionedMobileList) > 0
}

func (c *Channel) buildPayload(content, title string) payload {
	if title == "" {
		title = channel.DefaultTitle
	}
	if c.hasMentions() {
		return payload{
			MsgType: "text",
			Text: &textBody{
				Content:             title + "\n" + content,
				MentionedList:       c.cfg.MentionedList,
				MentionedMobileList: c.cfg.MentionedMobileList,
			},
		}
	}
	return payload{
		MsgType:  "markdown",
		Markdown: &markdownBody{Content: fmt.Sprintf("## %s\n\n%s", title, content)},
	}
}

// Send posts the message.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	err := c.client.PostJSON(ctx, c.URL(), c.buildPayload(content, title), webhook.CodeCheck(checkResponse))
	if err != nil {
		return err
	}
	c.logger.Debug("wechat send successfully")
	return nil
}
