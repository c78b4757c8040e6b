package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"easel/internal/config"
)

func main() {
	// Missing .env files are fine; real environment variables win either way.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "Configuration file path")
		logLevel   = flag.String("log-level", "", "Override the configured log level")
		diagnostic = flag.Bool("diagnostic", false, "Tee a debug-level JSON log alongside the normal log")
	)
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "easeld: load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, options{LogLevel: *logLevel, Diagnostic: *diagnostic}); err != nil {
		fmt.Fprintf(os.Stderr, "easeld: %v\n", err)
		os.Exit(1)
	}
}
