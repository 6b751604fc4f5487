package adminauth

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/config"
)

func TestTokenFallsBackToEnvVarWhenVaultNotConfigured(t *testing.T) {
	t.Setenv(EnvTokenFallback, "env-token-123")

	s := NewSource(config.VaultConfig{}, zerolog.Nop())
	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-token-123", token)
}

func TestTokenCachesAcrossCalls(t *testing.T) {
	t.Setenv(EnvTokenFallback, "first-token")

	s := NewSource(config.VaultConfig{}, zerolog.Nop())
	first, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first-token", first)

	// Changing the env var after the first call must not affect the
	// cached value until expiresAt elapses.
	t.Setenv(EnvTokenFallback, "second-token")
	second, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first-token", second)
}

func TestTokenErrorsWhenNothingConfigured(t *testing.T) {
	t.Setenv(EnvTokenFallback, "")

	s := NewSource(config.VaultConfig{}, zerolog.Nop())
	_, err := s.Token(context.Background())
	assert.Error(t, err)
}
