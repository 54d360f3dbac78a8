package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

func runSend(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		title      string
		content    string
		concurrent bool
		timeout    time.Duration
	)
	fs.StringVar(&configPath, "config", "notifykit.yaml", "path to the configuration file")
	fs.StringVar(&title, "title", "", "notification title")
	fs.StringVar(&content, "content", "", "notification content, or - to read stdin")
	fs.BoolVar(&concurrent, "concurrent", false, "send to all channels at once (default from config)")
	fs.DurationVar(&timeout, "timeout", 0, "dispatch timeout (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if content == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = strings.TrimRight(string(data), "\n")
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("content is required")
	}

	a, err := newApp(ctx, configPath, stderr)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if timeout > 0 {
		a.cfg.Timeout = timeout
	}
	if !flagSet(fs, "concurrent") {
		concurrent = a.cfg.Concurrent
	}
	if err := a.dispatch(ctx, content, title, concurrent); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "sent to %d channel(s)\n", a.publisher.Len())
	return nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
