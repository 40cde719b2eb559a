// Package main provides a CLI tool for the search audit schema migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/config"
	"github.com/helixir/researcher-lookup-service/internal/database"
	"github.com/helixir/researcher-lookup-service/internal/observability"
)

// action is one migration command selected on the command line.
type action struct {
	name  string
	steps int
	force int
}

// options are the parsed command-line flags.
type options struct {
	action action
	path   string
}

var errNoAction = errors.New("no action specified")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags validates that exactly one of -up, -down, -steps, -version and
// -force is given.
func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)
	up := fs.Bool("up", false, "Run all pending migrations")
	down := fs.Bool("down", false, "Roll back all migrations")
	steps := fs.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := fs.Bool("version", false, "Print the current migration version")
	force := fs.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	path := fs.String("path", "", "Read migrations from this directory instead of the embedded set")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var selected []action
	if *up {
		selected = append(selected, action{name: "up"})
	}
	if *down {
		selected = append(selected, action{name: "down"})
	}
	if *steps != 0 {
		selected = append(selected, action{name: "steps", steps: *steps})
	}
	if *version {
		selected = append(selected, action{name: "version"})
	}
	if *force >= 0 {
		selected = append(selected, action{name: "force", force: *force})
	}

	switch len(selected) {
	case 0:
		fs.Usage()
		fmt.Fprintln(output, "\nPlease specify one of: -up, -down, -steps N, -version, -force V")
		return options{}, errNoAction
	case 1:
		return options{action: selected[0], path: *path}, nil
	default:
		return options{}, fmt.Errorf("specify only one action at a time")
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	// Database settings come from env/config file; the enabled flag only
	// governs the service, an explicit migrate run always connects.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if opts.path != "" {
		migrationDir = opts.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := apply(migrator, opts.action, logger); err != nil {
		return err
	}
	printVersion(migrator, logger)
	return nil
}

func apply(migrator *database.Migrator, a action, logger zerolog.Logger) error {
	switch a.name {
	case "up":
		logger.Info().Msg("running all pending migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		logger.Warn().Msg("rolling back all migrations")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "steps":
		logger.Info().Int("steps", a.steps).Msg("running migration steps")
		if err := migrator.Steps(a.steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case "force":
		logger.Warn().Int("version", a.force).Msg("forcing migration version")
		if err := migrator.Force(a.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case "version":
	default:
		return errNoAction
	}
	return nil
}

// printVersion logs the current migration version.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
