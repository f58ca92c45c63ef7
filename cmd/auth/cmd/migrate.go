package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aussiebroadwan/sok/internal/auth/app"
	"github.com/aussiebroadwan/sok/internal/auth/store/drivers/sqlite"
	"github.com/spf13/cobra"
)

func newMigrateCmd(conf func() app.Config) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  `Commands for managing the SQLite schema. serve applies pending migrations on its own.`,
	}

	// withDB opens the configured database for a single command.
	withDB := func(fn func(cmd *cobra.Command, args []string, db *sqlite.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg := conf()
			if cfg.StoreDriver != app.StoreSQLite {
				return errors.New("migrations only apply to the sqlite store")
			}
			db, err := app.OpenSQLite(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, args, db)
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, _ []string, db *sqlite.Store) error {
			if err := db.ApplyMigrations(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return printVersion(cmd, db)
		}),
	}

	downCmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations",
		Long:  `Rolls back the given number of migrations, one by default.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(func(cmd *cobra.Command, args []string, db *sqlite.Store) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			if err := db.RollbackMigrations(steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return printVersion(cmd, db)
		}),
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, _ []string, db *sqlite.Store) error {
			return printVersion(cmd, db)
		}),
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

func printVersion(cmd *cobra.Command, db *sqlite.Store) error {
	v, dirty, err := db.MigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d", v)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
