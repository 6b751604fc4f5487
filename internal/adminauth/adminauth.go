// Package adminauth sources the admin HTTP surface's bearer token,
// preferring Vault (via the real hashicorp/vault/api client) and falling
// back to an environment variable exactly like the teacher's
// internal/vault client falls back from VAULT_TOKEN to VAULT_DEV_TOKEN.
package adminauth

import (
	"context"
	"fmt"
	"os"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"

	"github.com/martinsk/mskql/internal/config"
)

// EnvTokenFallback is read when Vault is not configured or unreachable.
const EnvTokenFallback = "MSKQL_ADMIN_TOKEN"

// Source resolves the current admin bearer token, caching it for five
// minutes so every request doesn't round-trip to Vault.
type Source struct {
	cfg   config.VaultConfig
	log   zerolog.Logger
	vault *vaultapi.Client

	cached    string
	expiresAt time.Time
}

// NewSource builds a Source. A Vault client is constructed here only if
// cfg.Address is set; an unreachable Vault degrades to the env-var
// fallback rather than failing admin-surface startup.
func NewSource(cfg config.VaultConfig, log zerolog.Logger) *Source {
	s := &Source{cfg: cfg, log: log.With().Str("component", "adminauth").Logger()}
	if cfg.Address == "" {
		return s
	}
	vc, err := vaultapi.NewClient(&vaultapi.Config{Address: cfg.Address})
	if err != nil {
		s.log.Warn().Err(err).Str("vault_addr", cfg.Address).Msg("failed to construct vault client, falling back to env token")
		return s
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		vc.SetToken(token)
	}
	s.vault = vc
	return s
}

// Token returns the current admin bearer token.
func (s *Source) Token(ctx context.Context) (string, error) {
	if s.cached != "" && time.Now().Before(s.expiresAt) {
		return s.cached, nil
	}

	if s.vault != nil {
		token, err := s.fetchFromVault(ctx)
		if err == nil {
			s.cached = token
			s.expiresAt = time.Now().Add(5 * time.Minute)
			return token, nil
		}
		s.log.Warn().Err(err).Msg("vault token fetch failed, falling back to env token")
	}

	token := os.Getenv(EnvTokenFallback)
	if token == "" {
		return "", fmt.Errorf("adminauth: no admin token available (set vault.address or %s)", EnvTokenFallback)
	}
	s.cached = token
	s.expiresAt = time.Now().Add(5 * time.Minute)
	return token, nil
}

func (s *Source) fetchFromVault(ctx context.Context) (string, error) {
	secret, err := s.vault.Logical().ReadWithContext(ctx, s.cfg.SecretPath)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", s.cfg.SecretPath, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault: no secret at %s", s.cfg.SecretPath)
	}
	raw, ok := secret.Data["token"]
	if !ok {
		if data, ok := secret.Data["data"].(map[string]interface{}); ok {
			raw, ok = data["token"]
			if !ok {
				return "", fmt.Errorf("vault: secret at %s has no \"token\" field", s.cfg.SecretPath)
			}
		} else {
			return "", fmt.Errorf("vault: secret at %s has no \"token\" field", s.cfg.SecretPath)
		}
	}
	token, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: \"token\" field at %s is not a string", s.cfg.SecretPath)
	}
	return token, nil
}
