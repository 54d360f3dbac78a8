package main

import (
	"context"
	"flag"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/notifykit/internal/schedule"
	"github.com/kart-io/notifykit/internal/server"
	"github.com/kart-io/notifykit/pkg/observability"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, addr string
	fs.StringVar(&configPath, "config", "notifykit.yaml", "path to the configuration file")
	fs.StringVar(&addr, "addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewPromRecorder(reg)

	a, err := newApp(ctx, configPath, stderr, prom)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	sched := schedule.New(a.publisher, schedule.WithLogger(a.log), schedule.WithTimeout(a.cfg.Timeout))
	for _, job := range a.cfg.Schedules {
		if _, err := sched.Add(job); err != nil {
			return err
		}
	}

	srv := server.New(a.publisher,
		server.WithLogger(a.log),
		server.WithGatherer(reg),
		server.WithTimeout(a.cfg.Timeout),
		server.WithConcurrentDefault(a.cfg.Concurrent),
		server.WithHTTPTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, addr) })
	if sched.Len() > 0 {
		g.Go(func() error { return sched.Run(gctx) })
	}
	err = g.Wait()
	a.log.Info("notifykit stopped")
	return err
}
