package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appLog "jamati/internal/log"
)

var version = "0.1.0-dev"

func main() {
	// A missing .env is fine; everything it could set has a default.
	_ = godotenv.Load()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("command failed", err)
		stop()
		os.Exit(1)
	}
}
