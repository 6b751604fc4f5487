package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5433, MaxFrameLength: 1024, MaxConnsPerAddr: 10, MsgRatePerSec: 100},
		Admin:  AdminConfig{Enabled: true, Host: "0.0.0.0", Port: 8089},
		Arena:  ArenaConfig{ChunkSizeBytes: 4096},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidateAcceptsDefaultShapedConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsClashingPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Port = cfg.Server.Port

	err := cfg.Validate()
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	found := false
	for _, e := range ve {
		if e.Field == "admin.port" {
			found = true
		}
	}
	assert.True(t, found, "expected an admin.port validation error, got %v", ve)
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestValidateSkipsAdminChecksWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Enabled = false
	cfg.Admin.Port = -1 // would otherwise fail range check

	require.NoError(t, cfg.Validate())
}
