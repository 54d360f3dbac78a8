// Package watch runs a function and reports its outcome through a
// notify.Publisher.
//
//	err := watch.Watch(ctx, "nightly-backup", backup,
//		watch.WithTitle("backup"),
//		watch.NotifyOnSuccess(false),
//	)
//
// Messages are rendered from mustache templates with the variables
// function_name, execution_time, error_message, start_time, end_time and
// result. Notification failures are logged and never change what the
// wrapped function returns.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cbroglie/mustache"

	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify"
)

const (
	DefaultSuccessTemplate = "✅ 函数 {{{function_name}}} 执行成功\n⏱️ 执行时间: {{execution_time}}秒"
	DefaultErrorTemplate   = "❌ 函数 {{{function_name}}} 执行失败\n⏱️ 执行时间: {{execution_time}}秒\n🚨 错误信息: {{{error_message}}}"

	timeLayout      = "2006-01-02 15:04:05"
	maxResultLength = 200
)

// Execution describes one run of a watched function.
type Execution struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Result    any
	HasResult bool
	Err       error
}

// Duration returns the elapsed time of the run.
func (e *Execution) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Watcher wraps functions with outcome notifications. A Watcher is safe for
// concurrent use.
type Watcher struct {
	name      string
	opts      *options
	publisher *notify.Publisher
	log       logger.Logger
	success   *mustache.Template
	failure   *mustache.Template
}

// New builds a Watcher for the function called name.
func New(name string, opts ...Option) (*Watcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if !o.notifyOnSuccess && !o.notifyOnError {
		return nil, errors.New("watch: notify on success and notify on error cannot both be disabled")
	}
	if o.timeout < 0 {
		return nil, fmt.Errorf("watch: timeout must be positive, got %s", o.timeout)
	}

	w := &Watcher{name: name, opts: o, log: logger.OrDiscard(o.logger)}

	var err error
	if w.success, err = mustache.ParseString(o.successTemplate); err != nil {
		return nil, fmt.Errorf("watch: parse success template: %w", err)
	}
	if w.failure, err = mustache.ParseString(o.errorTemplate); err != nil {
		return nil, fmt.Errorf("watch: parse error template: %w", err)
	}

	w.publisher = o.publisher
	if w.publisher == nil {
		w.publisher = notify.Default()
	}
	if w.publisher == nil {
		w.log.Warn("no publisher given and no default publisher set, notifications will go nowhere", "function", name)
		w.publisher = notify.New(notify.WithLogger(w.log))
	}
	return w, nil
}

// Run calls fn and notifies about its outcome. The error is fn's own.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	_, err := run(ctx, w, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, false)
	return err
}

// Watch is the one-shot form of New followed by Run.
func Watch(ctx context.Context, name string, fn func(context.Context) error, opts ...Option) error {
	w, err := New(name, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}

// WatchValue runs fn under w and returns its value unchanged. With
// WithResult the value is included in the success message.
func WatchValue[T any](ctx context.Context, w *Watcher, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, w, fn, true)
}

func run[T any](ctx context.Context, w *Watcher, fn func(context.Context) (T, error), hasResult bool) (T, error) {
	exec := &Execution{Name: w.name, StartTime: w.opts.now()}
	w.log.Debug("watch start", "function", w.name)

	result, err := fn(ctx)

	exec.EndTime = w.opts.now()
	exec.Err = err
	if err == nil && hasResult {
		exec.Result = result
		exec.HasResult = true
	}
	w.log.Debug("watch end", "function", w.name, "duration", exec.Duration(), "error", err)

	switch {
	case err == nil && w.opts.notifyOnSuccess:
		w.notify(ctx, exec)
	case err != nil && w.opts.notifyOnError:
		w.notify(ctx, exec)
	}
	return result, err
}

func (w *Watcher) notify(ctx context.Context, exec *Execution) {
	title, content, err := w.Render(exec)
	if err != nil {
		w.log.Warn("render watch notification failed", "function", w.name, "error", err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	if w.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.timeout)
		defer cancel()
	}

	if w.opts.concurrent {
		err = w.publisher.PublishConcurrently(ctx, content, title)
	} else {
		err = w.publisher.Publish(ctx, content, title)
	}
	if err != nil {
		w.log.Warn("send watch notification failed", "function", w.name, "error", err)
		return
	}
	w.log.Info("watch notification sent", "function", w.name, "title", title)
}

// Render produces the title and content for exec.
func (w *Watcher) Render(exec *Execution) (title, content string, err error) {
	vars := variables(exec)
	if exec.Err == nil {
		title = fmt.Sprintf("✅ %s 执行成功", exec.Name)
		content, err = w.success.Render(vars)
		if err == nil && w.opts.includeResult && exec.HasResult {
			content += "\n📋 返回结果: " + vars["result"].(string)
		}
	} else {
		title = fmt.Sprintf("❌ %s 执行失败", exec.Name)
		content, err = w.failure.Render(vars)
	}
	if w.opts.title != "" {
		title = w.opts.title
	}
	return title, content, err
}

func variables(exec *Execution) map[string]any {
	vars := map[string]any{
		"function_name":  exec.Name,
		"execution_time": fmt.Sprintf("%.2f", exec.Duration().Seconds()),
		"error_message":  "",
		"start_time":     exec.StartTime.Format(timeLayout),
		"end_time":       exec.EndTime.Format(timeLayout),
	}
	if exec.Err != nil {
		vars["error_message"] = exec.Err.Error()
	}
	if exec.HasResult {
		vars["result"] = serialize(exec.Result)
	}
	return vars
}

func serialize(v any) string {
	var s string
	if b, err := json.Marshal(v); err == nil {
		s = string(b)
	} else {
		s = fmt.Sprint(v)
	}
	if utf8.RuneCountInString(s) > maxResultLength {
		s = string([]rune(s)[:maxResultLength]) + "..."
	}
	return s
}
