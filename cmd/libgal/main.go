package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"libgal/cmd/libgal/commands"
)

func main() {
	// Ctrl+C cancels running statements instead of killing the session mid load
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
	if ctx.Err() != nil {
		os.Exit(130)
	}
}
