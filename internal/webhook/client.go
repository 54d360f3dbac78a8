// Package webhook is the HTTP plumbing shared by the webhook-style channels.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/logger"
)

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeForm = "application/x-www-form-urlencoded"

	userAgent = "notifykit/1.0"

	// maxBodyLog caps how much of a response body ends up in logs and errors.
	maxBodyLog = 512
)

// ResponseCheck inspects a 2xx response body and returns an error when the
// backend reported a failure inside the payload.
type ResponseCheck func(body []byte) error

// Client sends webhook requests on behalf of one channel.
type Client struct {
	channel string
	http    *http.Client
	logger  logger.Logger
	headers map[string]string
}

// New creates a Client. channel names the owner in errors and logs.
func New(channel string, hc *http.Client, log logger.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		channel: channel,
		http:    hc,
		logger:  logger.OrDiscard(log),
		headers: make(map[string]string),
	}
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// PostJSON marshals payload and POSTs it to rawURL.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, check ResponseCheck) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return nerrors.NewDeliveryError(c.channel, 0, "failed to marshal payload", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, ContentTypeJSON, bytes.NewReader(body), check)
}

// PostForm POSTs form as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, check ResponseCheck) error {
	return c.do(ctx, http.MethodPost, rawURL, ContentTypeForm, strings.NewReader(form.Encode()), check)
}

// Get issues a GET with query merged into rawURL's existing query.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, check ResponseCheck) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nerrors.NewDeliveryError(c.channel, 0, "invalid request url", err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return c.do(ctx, http.MethodGet, u.String(), "", nil, check)
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body io.Reader, check ResponseCheck) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nerrors.NewDeliveryError(c.channel, 0, "failed to create request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Debug("sending webhook request", "channel", c.channel, "method", method, "url", redact(req.URL))

	resp, err := c.http.Do(req)
	if err != nil {
		return nerrors.NewDeliveryError(c.channel, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nerrors.NewDeliveryError(c.channel, resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("webhook returned non-2xx status", "channel", c.channel, "status", resp.StatusCode, "body", truncate(respBody))
		return nerrors.NewDeliveryError(c.channel, resp.StatusCode,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(respBody)), nil)
	}

	if check != nil {
		if err := check(respBody); err != nil {
			c.logger.Error("webhook reported failure", "channel", c.channel, "error", err)
			return nerrors.NewDeliveryError(c.channel, resp.StatusCode, "backend rejected message", err)
		}
	}

	c.logger.Debug("webhook request succeeded", "channel", c.channel, "status", resp.StatusCode)
	return nil
}

// CodeCheck returns a ResponseCheck that decodes body into a fresh T and
// fails when failed reports true. Bodies that are not JSON pass.
func CodeCheck[T any](failed func(T) error) ResponseCheck {
	return func(body []byte) error {
		var v T
		if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &v) != nil {
			return nil
		}
		return failed(v)
	}
}

func truncate(b []byte) string {
	if len(b) > maxBodyLog {
		return string(b[:maxBodyLog]) + "..."
	}
	return string(b)
}

// redact hides path segments and query values, which carry tokens for most
// backends.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/..."
}
