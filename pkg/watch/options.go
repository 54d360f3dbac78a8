package watch

import (
	"time"

	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify"
)

// Option configures a Watcher.
type Option func(*options)

type options struct {
	publisher       *notify.Publisher
	logger          logger.Logger
	title           string
	successTemplate string
	errorTemplate   string
	notifyOnSuccess bool
	notifyOnError   bool
	includeResult   bool
	timeout         time.Duration
	concurrent      bool
	now             func() time.Time
}

func defaultOptions() *options {
	return &options{
		successTemplate: DefaultSuccessTemplate,
		errorTemplate:   DefaultErrorTemplate,
		notifyOnSuccess: true,
		notifyOnError:   true,
		now:             time.Now,
	}
}

// WithPublisher sets the publisher notifications go through. Without it the
// process default from notify.Default is used.
func WithPublisher(p *notify.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTitle overrides the generated notification title.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithSuccessTemplate sets the mustache template rendered on success.
func WithSuccessTemplate(tmpl string) Option {
	return func(o *options) { o.successTemplate = tmpl }
}

// WithErrorTemplate sets the mustache template rendered on failure.
func WithErrorTemplate(tmpl string) Option {
	return func(o *options) { o.errorTemplate = tmpl }
}

// NotifyOnSuccess toggles success notifications.
func NotifyOnSuccess(enabled bool) Option {
	return func(o *options) { o.notifyOnSuccess = enabled }
}

// NotifyOnError toggles failure notifications.
func NotifyOnError(enabled bool) Option {
	return func(o *options) { o.notifyOnError = enabled }
}

// WithResult appends the serialized return value to success messages.
func WithResult() Option {
	return func(o *options) { o.includeResult = true }
}

// WithTimeout bounds how long a notification may take.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Concurrently dispatches with PublishConcurrently instead of Publish.
func Concurrently() Option {
	return func(o *options) { o.concurrent = true }
}
