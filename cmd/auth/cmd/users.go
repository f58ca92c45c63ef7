package cmd

import (
	"fmt"
	"strings"

	"github.com/aussiebroadwan/sok/internal/auth/app"
	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/slogx"
	"github.com/spf13/cobra"
)

func newUsersCmd(conf func() app.Config) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage local user accounts",
	}
	usersCmd.AddCommand(newUsersCreateCmd(conf), newUsersStatusCmd(conf))
	return usersCmd
}

// openUsers loads the pepper and opens the store the same way serve does,
// so hashes written here verify on the server.
func openUsers(cfg app.Config) (*service.UserService, store.Store, error) {
	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	st, err := app.OpenStore(cfg, slogx.Discard())
	if err != nil {
		return nil, nil, err
	}
	return &service.UserService{Store: st}, st, nil
}

func newUsersCreateCmd(conf func() app.Config) *cobra.Command {
	var (
		email       string
		name        string
		password    string
		authorities []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a password account",
		Long: `Creates an ACTIVE local account. Without --password a random one is
generated and printed once.`,
		Example: `  auth users create --email alice@example.com --name Alice
  auth users create --email ops@example.com --authority USER --authority ADMIN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, st, err := openUsers(conf())
			if err != nil {
				return err
			}
			defer st.Close()

			generated := password == ""
			if generated {
				if password, err = cryptox.GeneratePassword(); err != nil {
					return err
				}
			}

			for i, a := range authorities {
				authorities[i] = strings.ToUpper(strings.TrimSpace(a))
			}

			u, err := users.CreateLocalUser(cmd.Context(), email, name, password, authorities)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", u.ID)
			fmt.Fprintf(out, "email:       %s\n", u.Email)
			fmt.Fprintf(out, "authorities: %s\n", strings.Join(u.Authorities, ","))
			if generated {
				fmt.Fprintf(out, "password:    %s\n", password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password, generated when empty")
	cmd.Flags().StringSliceVar(&authorities, "authority", nil, "Granted authority, repeatable (default USER)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUsersStatusCmd(conf func() app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id> <ACTIVE|SUSPENDED|PENDING>",
		Short: "Change an account's status",
		Long: `Changes the status of an account. Anything but ACTIVE also drops the
user's refresh token, so the account cannot refresh again. Access tokens
already issued stay valid until they expire.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, st, err := openUsers(conf())
			if err != nil {
				return err
			}
			defer st.Close()

			id, status := args[0], domain.Status(strings.ToUpper(args[1]))
			if err := users.SetStatus(cmd.Context(), id, status); err != nil {
				return fmt.Errorf("failed to set status: %w", err)
			}

			if status != domain.StatusActive {
				if err := st.Sessions().DeleteSession(cmd.Context(), id); err != nil {
					return fmt.Errorf("status changed but the session could not be dropped: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", id, status)
			return nil
		},
	}
}
