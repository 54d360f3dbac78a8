// Package email delivers notifications as HTML e-mail over SMTP.
//
// The SMTP session is dialed and authenticated once, when the channel is
// built, and reused by every Send. Close the channel to release it.
package email

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

const (
	Name           = "email"
	DefaultTimeout = 30 * time.Second
)

// Config configures an SMTP channel.
type Config struct {
	Server    string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	ToEmails  []string

	// SSL selects implicit TLS. When false the session upgrades with
	// mandatory STARTTLS instead.
	SSL     bool
	Timeout time.Duration
}

var requiredKeys = []string{"server", "port", "username", "password", "from_email"}

// ParseConfig reads a Config from generic channel configuration. ssl
// defaults to true.
func ParseConfig(raw channel.Config) (Config, error) {
	if err := raw.Require(Name, requiredKeys...); err != nil {
		return Config{}, err
	}
	port, _, err := raw.Int("port")
	if err != nil {
		return Config{}, nerrors.NewConfigErrorf(Name, "port must be an integer: %v", err)
	}
	cfg := Config{
		Server:    raw.StringOr("server", ""),
		Port:      port,
		Username:  raw.StringOr("username", ""),
		Password:  raw.StringOr("password", ""),
		FromEmail: raw.StringOr("from_email", ""),
		FromName:  raw.StringOr("from_name", ""),
		SSL:       true,
		Timeout:   DefaultTimeout,
	}
	cfg.ToEmails, _ = raw.Strings("to_emails")
	if ssl, ok := raw.Bool("ssl"); ok {
		cfg.SSL = ssl
	}
	return cfg, nil
}

// Validate checks required fields and the port range.
func (c Config) Validate() error {
	fields := []struct{ key, val string }{
		{"server", c.Server},
		{"username", c.Username},
		{"password", c.Password},
		{"from_email", c.FromEmail},
	}
	var missing []string
	for _, f := range fields {
		if f.val == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nerrors.NewMissingFieldsError(Name, missing)
	}
	if c.Port < 1 || c.Port > 65535 {
		return nerrors.NewConfigErrorf(Name, "port %d out of range 1-65535", c.Port)
	}
	if err := mail.NewMsg().From(c.FromEmail); err != nil {
		return nerrors.NewConfigErrorf(Name, "invalid from_email: %v", err)
	}
	return nil
}

// Session is an authenticated SMTP connection. *mail.Client satisfies it.
type Session interface {
	Send(msgs ...*mail.Msg) error
	Close() error
}

// Dialer opens a Session for cfg.
type Dialer func(ctx context.Context, cfg Config) (Session, error)

// DialSMTP is the default Dialer, backed by go-mail.
func DialSMTP(ctx context.Context, cfg Config) (Session, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.Server, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Channel sends e-mail over a long-lived SMTP session.
type Channel struct {
	cfg    Config
	logger logger.Logger

	mu      sync.Mutex
	session Session
}

// New validates cfg and dials the SMTP session. Dial and authentication
// errors are returned as-is. A nil dial uses DialSMTP.
func New(ctx context.Context, cfg Config, deps channel.Deps, dial Dialer) (*Channel, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialSMTP
	}
	session, err := dial(ctx, cfg)
	if err != nil {
		deps.Log().Error("failed to open smtp session", "server", cfg.Server, "port", cfg.Port, "error", err)
		return nil, err
	}
	return &Channel{cfg: cfg, logger: deps.Log(), session: session}, nil
}

// Factory builds an e-mail channel using DialSMTP.
func Factory(ctx context.Context, raw channel.Config, deps channel.Deps) (channel.Channel, error) {
	return FactoryWithDialer(DialSMTP)(ctx, raw, deps)
}

// FactoryWithDialer returns a Factory that opens sessions with dial.
func FactoryWithDialer(dial Dialer) channel.Factory {
	return func(ctx context.Context, raw channel.Config, deps channel.Deps) (channel.Channel, error) {
		cfg, err := ParseConfig(raw)
		if err != nil {
			return nil, err
		}
		ch, err := New(ctx, cfg, deps, dial)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

func (c *Channel) Name() string { return Name }

func (c *Channel) Config() Config { return c.cfg }

func (c *Channel) buildMessage(content, title string) (*mail.Msg, error) {
	if title == "" {
		title = channel.DefaultTitle
	}
	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))
	var err error
	if c.cfg.FromName != "" {
		err = m.FromFormat(c.cfg.FromName, c.cfg.FromEmail)
	} else {
		err = m.From(c.cfg.FromEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := m.To(c.cfg.ToEmails...); err != nil {
		return nil, fmt.Errorf("failed to set To addresses: %w", err)
	}
	m.Subject(title)
	m.SetBodyString(mail.TypeTextHTML, content)
	return m, nil
}

// Send mails content to every configured recipient. With no recipients it
// logs an error and returns nil.
func (c *Channel) Send(ctx context.Context, content, title string) error {
	if len(c.cfg.ToEmails) == 0 {
		c.logger.Error("email has no recipients, set to_emails")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return nerrors.NewDeliveryError(Name, 0, "send aborted", err)
	}
	m, err := c.buildMessage(content, title)
	if err != nil {
		return nerrors.NewDeliveryError(Name, 0, "failed to build message", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nerrors.NewDeliveryError(Name, 0, "session closed", nil)
	}
	if err := c.session.Send(m); err != nil {
		c.logger.Error("failed to send email", "to", c.cfg.ToEmails, "error", err)
		return nerrors.NewDeliveryError(Name, 0, "smtp send failed", err)
	}
	c.logger.Debug("email send successfully", "recipients", len(c.cfg.ToEmails))
	return nil
}

// Close ends the SMTP session. Further sends fail.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
