package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/voidgazerbly/snapwalk/cmd"
)

func main() {
	// Interrupts must unwind through the command so the browser session is
	// always released before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
