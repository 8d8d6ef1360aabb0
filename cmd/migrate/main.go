// Package main provides a CLI tool for database migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/database"
	"github.com/helixir/profile-service/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// migration is one action run against an open migrator.
type migration func(m *database.Migrator, logger zerolog.Logger) error

func newRootCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply profile-service schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Override the migrations directory path")

	withMigrator := func(action migration) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), path, action)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator, logger zerolog.Logger) error {
				logger.Info().Msg("running all pending migrations")
				if err := m.Up(); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator, logger zerolog.Logger) error {
				logger.Warn().Msg("rolling back all migrations")
				if err := m.Down(); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Run N migration steps (positive=up, negative=down)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseNonZero(args[0])
				if err != nil {
					return err
				}
				return withMigrator(func(m *database.Migrator, logger zerolog.Logger) error {
					logger.Info().Int("steps", n).Msg("running migration steps")
					if err := m.Steps(n); err != nil {
						return fmt.Errorf("migrate steps: %w", err)
					}
					return nil
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(*database.Migrator, zerolog.Logger) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force V",
			Short: "Force set migration version (use to recover from failed migrations)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *database.Migrator, logger zerolog.Logger) error {
					logger.Warn().Int("version", v).Msg("forcing migration version")
					if err := m.Force(v); err != nil {
						return fmt.Errorf("force version: %w", err)
					}
					return nil
				})(cmd, args)
			},
		},
	)
	return cmd
}

func parseNonZero(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid step count %q", arg)
	}
	return n, nil
}

// runMigration connects to the configured database, runs action and prints
// the resulting version.
func runMigration(ctx context.Context, pathOverride string, action migration) error {
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
	if pathOverride != "" {
		migrationDir = pathOverride
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
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

	if err := action(migrator, logger); err != nil {
		return err
	}

	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return nil
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
	return nil
}
