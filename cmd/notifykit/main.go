// Command notifykit sends notifications from the shell or serves them over
// HTTP.
//
// Usage:
//
//	notifykit send -config notifykit.yaml -title T -content C
//	echo "disk full" | notifykit send -config notifykit.yaml -content -
//	notifykit serve -config notifykit.yaml -addr :8080
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "send":
		err = runSend(ctx, args[1:], stdin, stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notifykit <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  send    send one notification to every configured channel")
	fmt.Fprintln(w, "  serve   run the HTTP API and cron schedules")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'notifykit <command> -h' for command flags.")
}
