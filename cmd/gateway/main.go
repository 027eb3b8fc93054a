package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cloudship/deploy-gateway/pkg/gateway"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	// Load .env file (ignore error if file doesn't exist - env vars might be
	// set externally)
	_ = godotenv.Load()

	// Create gateway from the config file when one is named, otherwise from
	// environment variables
	gw, err := gateway.NewFromEnv(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the gateway (blocks until shutdown)
	return gw.Start(ctx)
}
