package main

import (
	"context"
	"log/slog"
	"os"

	lendingmigrations "github.com/ghuser/lendingclub/migrations/lending"
	"github.com/ghuser/lendingclub/pkg/config"
	"github.com/ghuser/lendingclub/pkg/migrator"
)

// Usage: migrate [up|up-by-one|down|redo|reset|status|version] [args...]
// With no arguments the lending schema is migrated up.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	command, args := "up", []string(nil)
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	if err := migrator.Run(context.Background(), cfg.DatabaseURL, lendingmigrations.MigrationsFS, command, args...); err != nil {
		slog.Error("migrations failed", "command", command, "error", err)
		os.Exit(1)
	}
	slog.Info("migrate done", "command", command)
}
