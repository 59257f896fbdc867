package main

import (
	"context"
	"log" // Use standard log only for errors raised before the logger is set up
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"swingTrader/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = ports.WithRunID(ctx, uuid.NewString())

	if err := Execute(ctx); err != nil {
		stop()
		log.Fatalf("FATAL: %v", err)
	}
}
