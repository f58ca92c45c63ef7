package cmd

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/sok/internal/auth/app"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Configuration is read from the
// environment before any subcommand runs.
func NewRootCmd() *cobra.Command {
	var cfg app.Config

	root := &cobra.Command{
		Use:   "auth",
		Short: "SOK authentication service",
		Long: `Issues stateless JWT access tokens with single-use rotating refresh tokens,
backed by a SQLite session store, with password and OAuth2 login.

Every setting is read from the environment (AUTH_*, RATELIMIT_*, LOG_*, PORT).`,
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = app.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return nil
		},
	}

	// Subcommands read cfg lazily, it is only populated once
	// PersistentPreRunE has run.
	conf := func() app.Config { return cfg }

	root.AddCommand(
		newServeCmd(conf),
		newMigrateCmd(conf),
		newUsersCmd(conf),
		newKeygenCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
