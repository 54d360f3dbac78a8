package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/kart-io/notifykit/internal/config"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify"
	"github.com/kart-io/notifykit/pkg/notify/channel"
	"github.com/kart-io/notifykit/pkg/observability"
)

// app holds what both commands build from the configuration file.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	telemetry *observability.Telemetry
	publisher *notify.Publisher
}

func newApp(ctx context.Context, path string, stderr io.Writer, recorders ...notify.Recorder) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	l := logger.NewStandardLogger(log.New(stderr, "", log.LstdFlags), cfg.Level(), "[notifykit]")

	tel, err := observability.New(ctx, cfg.Telemetry, observability.WithGlobal())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	opts := []notify.Option{
		notify.WithLogger(l),
		notify.WithTracerProvider(tel.TracerProvider()),
		notify.WithRecorder(append(observability.Recorders{tel}, toRecorders(recorders)...)),
		notify.WithDeps(channel.Deps{Logger: l}),
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, notify.WithBreakers(cfg.Breaker.Notify(l)))
	}
	pub, err := notify.FromSettings(ctx, cfg.Channels, opts...)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	l.Info("publisher ready", "channels", pub.Names())
	return &app{cfg: cfg, log: l, telemetry: tel, publisher: pub}, nil
}

func toRecorders(rs []notify.Recorder) observability.Recorders {
	out := make(observability.Recorders, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}
	return out
}

func (a *app) dispatch(ctx context.Context, content, title string, concurrent bool) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	if concurrent {
		return a.publisher.PublishConcurrently(ctx, content, title)
	}
	return a.publisher.Publish(ctx, content, title)
}

func (a *app) close(ctx context.Context) {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("close publisher", "error", err)
	}
	if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.log.Warn("shutdown telemetry", "error", err)
	}
}
