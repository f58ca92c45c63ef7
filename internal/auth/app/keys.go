package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
)

// InitCodec builds the token codec from the configured key material.
//
// Key sources:
//   - EdDSA: AUTH_SIGNING_KEY_FILE, a PKCS8 PEM Ed25519 key shared by every
//     instance.
//   - HS256: AUTH_SIGNING_SECRET, else the contents of
//     AUTH_SIGNING_KEY_FILE, else a random secret generated on startup.
//     A generated secret is ephemeral, every token issued before a restart
//     stops verifying.
func InitCodec(cfg Config, logger *slog.Logger) (*jwtx.Codec, error) {
	signer, err := initSigner(cfg, logger)
	if err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(signer, jwtx.WithIssuer(cfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to build token codec: %w", err)
	}

	logger.Info("token codec ready", "algorithm", codec.Alg(), "kid", cfg.KeyID, "issuer", cfg.Issuer)
	return codec, nil
}

func initSigner(cfg Config, logger *slog.Logger) (jwtx.Signer, error) {
	switch cfg.Algorithm {
	case AlgorithmEdDSA:
		pemKey, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		return jwtx.NewSignerEdDSA(cfg.KeyID, pemKey)

	case AlgorithmHS256:
		secret := []byte(cfg.SigningSecret)
		if len(secret) == 0 && cfg.SigningKeyFile != "" {
			b, err := os.ReadFile(cfg.SigningKeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read signing secret: %w", err)
			}
			secret = bytes.TrimSpace(b)
		}
		if len(secret) == 0 {
			s, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return nil, err
			}
			secret = []byte(s)
			logger.Warn("no signing secret configured, generated an ephemeral one; tokens will not survive a restart")
		}
		return jwtx.NewSignerHS256(cfg.KeyID, secret)

	default:
		return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
}
