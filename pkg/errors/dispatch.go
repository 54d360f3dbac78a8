package errors

import (
	"fmt"
	"strings"
)

// ChannelFailure is one failed send inside a concurrent dispatch.
type ChannelFailure struct {
	// Index is the channel's position in the publisher's attach order.
	Index   int    `json:"index"`
	Channel string `json:"channel"`
	Err     error  `json:"-"`
}

func (f ChannelFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Channel, f.Err)
}

func (f ChannelFailure) Unwrap() error {
	return f.Err
}

// DispatchError aggregates the failures of a concurrent dispatch. Failures are
// kept in attach order regardless of completion order.
type DispatchError struct {
	Failures []ChannelFailure `json:"failures"`
}

// NewDispatchError creates an empty DispatchError.
func NewDispatchError() *DispatchError {
	return &DispatchError{Failures: make([]ChannelFailure, 0)}
}

func (e *DispatchError) Error() string {
	switch len(e.Failures) {
	case 0:
		return "no errors"
	case 1:
		return e.Failures[0].Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d channels failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Add records a failure. A nil err is ignored.
func (e *DispatchError) Add(index int, channel string, err error) {
	if err == nil {
		return
	}
	e.Failures = append(e.Failures, ChannelFailure{Index: index, Channel: channel, Err: err})
}

// IsEmpty returns true if no failures are present.
func (e *DispatchError) IsEmpty() bool {
	return len(e.Failures) == 0
}

// ErrorOrNil returns e if it holds failures, otherwise nil.
func (e *DispatchError) ErrorOrNil() error {
	if e == nil || e.IsEmpty() {
		return nil
	}
	return e
}

// First returns the earliest failure in attach order, or nil.
func (e *DispatchError) First() error {
	if len(e.Failures) > 0 {
		return e.Failures[0].Err
	}
	return nil
}

// Count returns the number of failures.
func (e *DispatchError) Count() int {
	return len(e.Failures)
}

// Unwrap exposes every underlying error to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
