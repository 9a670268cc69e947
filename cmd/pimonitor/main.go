package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

// runMain executes the command line and returns the process exit code. Fatal
// errors go to stderr directly: the configured log file may already be
// closed by the time the error reaches here.
func runMain(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "pimonitor: %v\n", err)
		return 1
	}
	return 0
}
