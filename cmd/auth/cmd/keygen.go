package cmd

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/sok/internal/auth/app"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		alg string
		out string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate signing key material",
		Long: `Generates a key for AUTH_SIGNING_KEY_FILE. EdDSA writes a PKCS8 PEM
Ed25519 private key. HS256 writes a random 256 bit secret.`,
		Example: `  auth keygen --alg EdDSA --out /keys/ed25519.pem
  auth keygen --alg HS256 > secret`,
		Args: cobra.NoArgs,
		// keygen needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			var key []byte
			switch alg {
			case app.AlgorithmEdDSA:
				pemKey, err := cryptox.GenerateEd25519Key()
				if err != nil {
					return err
				}
				key = pemKey
			case app.AlgorithmHS256:
				secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
				if err != nil {
					return err
				}
				key = []byte(secret + "\n")
			default:
				return fmt.Errorf("unsupported algorithm %q, want %s or %s", alg, app.AlgorithmEdDSA, app.AlgorithmHS256)
			}

			if out == "" {
				_, err := cmd.OutOrStdout().Write(key)
				return err
			}
			if err := os.WriteFile(out, key, 0o600); err != nil {
				return fmt.Errorf("failed to write key: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s key to %s\n", alg, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&alg, "alg", app.AlgorithmEdDSA, "Key algorithm (EdDSA or HS256)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty")
	return cmd
}
