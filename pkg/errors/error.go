package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// NotifyError is a structured channel error.
type NotifyError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Channel    string    `json:"channel,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	// Cause is the underlying transport or parse error.
	Cause error `json:"-"`
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrChannelConfig   = &NotifyError{Code: CodeChannelConfig}
	ErrChannelDelivery = &NotifyError{Code: CodeChannelDelivery}
	ErrUnknownChannel  = &NotifyError{Code: CodeUnknownChannel}
	ErrInvalidSettings = &NotifyError{Code: CodeInvalidSettings}
)

func (e *NotifyError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.Channel != "" && e.StatusCode != 0:
		fmt.Fprintf(&b, " (channel: %s, status: %d)", e.Channel, e.StatusCode)
	case e.Channel != "":
		fmt.Fprintf(&b, " (channel: %s)", e.Channel)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *NotifyError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a NotifyError with the same code.
func (e *NotifyError) Is(target error) bool {
	if targetErr, ok := target.(*NotifyError); ok {
		return e.Code == targetErr.Code
	}
	return false
}

// WithCause adds a cause error.
func (e *NotifyError) WithCause(cause error) *NotifyError {
	e.Cause = cause
	return e
}

// WithChannel sets the channel name.
func (e *NotifyError) WithChannel(channel string) *NotifyError {
	e.Channel = channel
	return e
}

// WithStatusCode sets the HTTP or backend status code.
func (e *NotifyError) WithStatusCode(code int) *NotifyError {
	e.StatusCode = code
	return e
}

// New creates a NotifyError.
func New(code ErrorCode, message string) *NotifyError {
	return &NotifyError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a NotifyError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *NotifyError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a NotifyError.
func Wrap(err error, code ErrorCode, message string) *NotifyError {
	return New(code, message).WithCause(err)
}

// NewConfigError reports an invalid channel configuration.
func NewConfigError(channel, message string) *NotifyError {
	return New(CodeChannelConfig, message).WithChannel(channel)
}

// NewConfigErrorf is NewConfigError with a formatted message.
func NewConfigErrorf(channel, format string, args ...any) *NotifyError {
	return NewConfigError(channel, fmt.Sprintf(format, args...))
}

// NewMissingFieldsError reports required configuration keys that are absent
// or empty.
func NewMissingFieldsError(channel string, fields []string) *NotifyError {
	return NewConfigErrorf(channel, "missing required fields: %s", strings.Join(fields, ", "))
}

// NewDeliveryError reports a failed send. status is 0 when no response was
// received.
func NewDeliveryError(channel string, status int, message string, cause error) *NotifyError {
	return New(CodeChannelDelivery, message).
		WithChannel(channel).
		WithStatusCode(status).
		WithCause(cause)
}

// NewUnknownChannelError reports a settings key that names no channel.
func NewUnknownChannelError(name string) *NotifyError {
	return Newf(CodeUnknownChannel, "unknown channel %q", name).WithChannel(name)
}

// IsConfigError reports whether err is, or wraps, a channel configuration error.
func IsConfigError(err error) bool {
	return hasCode(err, CodeChannelConfig)
}

// IsDeliveryError reports whether err is, or wraps, a delivery error.
func IsDeliveryError(err error) bool {
	return hasCode(err, CodeChannelDelivery)
}

// IsUnknownChannel reports whether err is, or wraps, an unknown channel error.
func IsUnknownChannel(err error) bool {
	return hasCode(err, CodeUnknownChannel)
}

func hasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &NotifyError{Code: code})
}

// GetErrorChannel extracts the channel name from err, if any.
func GetErrorChannel(err error) string {
	var ne *NotifyError
	if stderrors.As(err, &ne) {
		return ne.Channel
	}
	return ""
}
