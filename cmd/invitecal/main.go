package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"invitecal/internal/cli"
)

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Main(ctx)
}
