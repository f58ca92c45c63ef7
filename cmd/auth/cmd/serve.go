package cmd

import (
	"fmt"

	"github.com/aussiebroadwan/sok/internal/auth/app"
	"github.com/spf13/cobra"
)

func newServeCmd(conf func() app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP server",
		Long:  `Opens the store, applies pending migrations and serves until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(conf())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}
