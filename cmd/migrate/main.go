// Command migrate applies schema migrations for the travel data service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hgj2025/cityinfo-sub001/internal/config"
	"github.com/hgj2025/cityinfo-sub001/internal/database"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
)

type options struct {
	up      bool
	down    bool
	steps   int
	version bool
	force   int
	drop    bool
	yes     bool
	path    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flag.BoolVar(&opts.up, "up", false, "apply all pending migrations")
	flag.BoolVar(&opts.down, "down", false, "roll back all migrations")
	flag.IntVar(&opts.steps, "steps", 0, "apply N steps (negative rolls back)")
	flag.BoolVar(&opts.version, "version", false, "print the current schema version")
	flag.IntVar(&opts.force, "force", -1, "force the schema version after a failed migration")
	flag.BoolVar(&opts.drop, "drop", false, "drop every object in the database")
	flag.BoolVar(&opts.yes, "yes", false, "confirm destructive actions (-down, -drop)")
	flag.StringVar(&opts.path, "path", "", "override the migrations directory")
	flag.Parse()

	if err := opts.validate(); err != nil {
		flag.Usage()
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if opts.path != "" {
		dir = opts.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case opts.up:
		logger.Info().Msg("applying pending migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}

	case opts.down:
		logger.Warn().Msg("rolling back all migrations")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}

	case opts.steps != 0:
		logger.Info().Int("steps", opts.steps).Msg("applying migration steps")
		if err := migrator.Steps(opts.steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}

	case opts.force >= 0:
		logger.Warn().Int("version", opts.force).Msg("forcing schema version")
		if err := migrator.Force(opts.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}

	case opts.drop:
		logger.Warn().Msg("dropping all database objects")
		if err := migrator.DropAll(); err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		return nil
	}

	reportVersion(migrator, logger)
	return nil
}

func (o options) validate() error {
	actions := 0
	for _, set := range []bool{o.up, o.down, o.steps != 0, o.version, o.force >= 0, o.drop} {
		if set {
			actions++
		}
	}
	switch {
	case actions == 0:
		return fmt.Errorf("specify one of: -up, -down, -steps N, -version, -force V, -drop")
	case actions > 1:
		return fmt.Errorf("specify only one action at a time")
	case (o.down || o.drop) && !o.yes:
		return fmt.Errorf("destructive action requires -yes")
	}
	return nil
}

func reportVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
