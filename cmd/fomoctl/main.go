package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"fomo/internal/cli"
	"fomo/internal/config"
	"fomo/internal/logging"
	"fomo/internal/providers/backend"
	"fomo/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	archive, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	deps := &cli.Dependencies{
		Archive: archive,
		Backend: backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.RequestTimeout,
		}),
	}

	return cli.NewRootCmd(deps).Execute()
}
