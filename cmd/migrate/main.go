// Command migrate creates the database schema and exits.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/logging"
)

func main() {
	start := time.Now()
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logs.Style, cfg.Logs.Level)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// OpenPostgres migrates before returning.
	store, err := app.OpenPostgres(ctx, cfg.DB)
	if err != nil {
		slog.Error("migration failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("schema up to date", "took", time.Since(start))
}
