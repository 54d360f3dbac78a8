// Package schedule sends notifications on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kart-io/notifykit/pkg/logger"
)

// Job is one scheduled notification.
type Job struct {
	Spec       string `yaml:"spec" json:"spec"`
	Title      string `yaml:"title" json:"title"`
	Content    string `yaml:"content" json:"content"`
	Concurrent bool   `yaml:"concurrent" json:"concurrent"`
}

// Validate checks the job's cron expression and content.
func (j Job) Validate() error {
	if err := ValidateSpec(j.Spec); err != nil {
		return err
	}
	if j.Content == "" {
		return fmt.Errorf("schedule %q: content is required", j.Spec)
	}
	return nil
}

// ValidateSpec parses a standard five-field cron expression or a
// descriptor such as "@hourly" or "@every 10m".
func ValidateSpec(spec string) error {
	if spec == "" {
		return errors.New("invalid cron schedule: cannot be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", spec, err)
	}
	return nil
}

// Publisher is the part of notify.Publisher the scheduler needs.
type Publisher interface {
	Publish(ctx context.Context, content, title string) error
	PublishConcurrently(ctx context.Context, content, title string) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.log = logger.OrDiscard(l) }
}

// WithLocation sets the time zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithTimeout bounds each scheduled dispatch.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// Scheduler runs Jobs against a Publisher.
type Scheduler struct {
	pub      Publisher
	log      logger.Logger
	location *time.Location
	timeout  time.Duration
	cron     *cron.Cron
}

// New creates a Scheduler. Call Add for each job, then Start or Run.
func New(pub Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{pub: pub, log: logger.Discard, location: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLocation(s.location))
	return s
}

// Add registers job.
func (s *Scheduler) Add(job Job) (cron.EntryID, error) {
	if err := job.Validate(); err != nil {
		return 0, err
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_ = s.RunJob(context.Background(), job)
	})
	if err != nil {
		return 0, fmt.Errorf("add cron job: %w", err)
	}
	s.log.Info("schedule added", "spec", job.Spec, "title", job.Title)
	return id, nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// RunJob dispatches job once.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	if job.Concurrent {
		err = s.pub.PublishConcurrently(ctx, job.Content, job.Title)
	} else {
		err = s.pub.Publish(ctx, job.Content, job.Title)
	}
	if err != nil {
		s.log.Error("scheduled notification failed", "spec", job.Spec, "title", job.Title, "error", err)
		return err
	}
	s.log.Info("scheduled notification sent", "spec", job.Spec, "title", job.Title, "duration", time.Since(start))
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}
