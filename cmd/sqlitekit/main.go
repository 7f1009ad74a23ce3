// sqlitekit - SQLite migration runner
//
// This is the command-line entry point for applying schema migrations to a
// SQLite database. It loads a YAML configuration describing the database and
// the migration script directory, opens the database, and applies every
// pending script exactly once.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nerrad567/sqlitekit"
	"github.com/nerrad567/sqlitekit/internal/infrastructure/config"
	"github.com/nerrad567/sqlitekit/internal/infrastructure/logging"
	"github.com/nerrad567/sqlitekit/migrate"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var version = "dev"

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging)
	log.Info("starting sqlitekit migration run",
		"version", version,
		"config", configPath,
	)

	db, err := sqlitekit.Open(ctx, sqlitekit.Config{
		Path:        cfg.Database.Path,
		Create:      cfg.Database.Create,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		ForeignKeys: cfg.Database.ForeignKeys,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", cfg.Database.Path)

	migrations, err := migrate.FromFS(os.DirFS(cfg.Migrations.Dir), ".")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	log.Info("migrations loaded", "dir", cfg.Migrations.Dir, "count", len(migrations))

	before, err := migrate.Current(ctx, db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if err := migrate.Apply(ctx, db, migrations); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	after, err := migrate.Current(ctx, db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("migrations complete",
		"previous_version", before,
		"current_version", after,
		"applied", after-before,
	)
	return nil
}

// getConfigPath resolves the config file path: first CLI argument, then the
// SQLITEKIT_CONFIG environment variable, then the default.
func getConfigPath() string {
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		return os.Args[1]
	}
	if path := os.Getenv("SQLITEKIT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
