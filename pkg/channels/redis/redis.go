// Package redis publishes notifications to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name        = "redis"
	DefaultAddr = "localhost:6379"

	dialTimeout = 5 * time.Second
)

// Config configures a Redis publisher.
type Config struct {
	// Channel is the pub/sub channel messages are published to.
	Channel string

	Addr     string
	Password string
	DB       int

	// URL, when set, takes precedence over Addr, Password and DB.
	URL string
}

// ParseConfig reads a Config from generic channel configuration.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, "channel"); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Addr:     raw.StringOr("addr", DefaultAddr),
		Password: raw.StringOr("password", ""),
		URL:      raw.StringOr("url", ""),
	}
	cfg.Channel, _ = raw.String("channel")
	db, _, err := raw.Int("db")
	if err != nil {
		return Config{}, nerrors.NewConfigError(Name, err.Error())
	}
	cfg.DB = db
	return cfg, nil
}

func (c Config) options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, nerrors.NewConfigErrorf(Name, "invalid url: %v", err)
		}
		return opts, nil
	}
	addr := c.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	if c.DB < 0 {
		return nil, nerrors.NewConfigErrorf(Name, "db %d must not be negative", c.DB)
	}
	return &redis.Options{
		Addr:        addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: dialTimeout,
	}, nil
}

// Message is the JSON document published for every notification.
type Message struct {
	Title   string    `json:"title,omitempty"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// Channel publishes to Redis. It owns its client and must be closed.
type Channel struct {
	cfg    Config
	client *redis.Client
	logger logger.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, deps channel.Deps) (*Channel, error) {
	if cfg.Channel == "" {
		return nil, nerrors.NewMissingFieldsError(Name, []string{"channel"})
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		deps.Log().Error("failed to connect to redis", "addr", opts.Addr, "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Channel{cfg: cfg, client: client, logger: deps.Log()}, nil
}

// Factory builds a Redis channel from generic configuration.
func Factory(ctx context.Context, raw channel.Config, deps channel.Deps) (channel.Channel, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	ch, err := New(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *Channel) Name() string { return Name }

func (c *Channel) Config() Config { return c.cfg }

// Send publishes the message. Having no subscribers is not an error.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	body, err := json.Marshal(Message{Title: title, Content: content, SentAt: time.Now().UTC()})
	if err != nil {
		return nerrors.NewDeliveryError(Name, 0, "failed to marshal message", err)
	}
	receivers, err := c.client.Publish(ctx, c.cfg.Channel, body).Result()
	if err != nil {
		return nerrors.NewDeliveryError(Name, 0, "publish failed", err)
	}
	c.logger.Debug("redis send successfully", "channel", c.cfg.Channel, "receivers", receivers)
	return nil
}

// Close releases the client.
func (c *Channel) Close() error {
	return c.client.Close()
}
