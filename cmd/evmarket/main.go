// main.go bootstraps the evmarket CLI: it builds the root Cobra command
// and executes it with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}

	// An interrupt leaves the last checkpoint durable, so the run can be
	// resumed. Treat it as a clean stop, not a failure.
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted; run state checkpointed")
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
