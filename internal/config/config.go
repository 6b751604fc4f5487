// Package config provides configuration management for mskql.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all process configuration (spec §4.8).
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Arena  ArenaConfig  `mapstructure:"arena"`
	Log    LogConfig    `mapstructure:"log"`
	NATS   NATSConfig   `mapstructure:"nats"`
	Vault  VaultConfig  `mapstructure:"vault"`
}

// ServerConfig controls the Postgres wire-protocol listener.
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	MaxFrameLength  int    `mapstructure:"max_frame_length"`
	MaxConnsPerAddr int    `mapstructure:"max_conns_per_addr"`
	MsgRatePerSec   int    `mapstructure:"msg_rate_per_sec"`
}

// AdminConfig controls the secondary admin HTTP/WS surface.
type AdminConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ArenaConfig controls the per-session bump allocator.
type ArenaConfig struct {
	ChunkSizeBytes int `mapstructure:"chunk_size_bytes"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// NATSConfig controls the embedded pub/sub server backing LISTEN/NOTIFY.
type NATSConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// VaultConfig optionally sources the admin bearer token from Vault.
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	SecretPath string `mapstructure:"secret_path"`
}

// Load reads configuration from an optional file (MSKQL_CONFIG) plus
// MSKQL_-prefixed environment variables, applies defaults, and validates
// the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mskql")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MSKQL")
	_ = v.BindEnv("server.port", "MSKQL_PORT")
	_ = v.BindEnv("admin.port", "MSKQL_ADMIN_PORT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5433)
	v.SetDefault("server.max_frame_length", 256*1024*1024)
	v.SetDefault("server.max_conns_per_addr", 64)
	v.SetDefault("server.msg_rate_per_sec", 500)

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8089)
	v.SetDefault("admin.cors_origins", []string{"*"})

	v.SetDefault("arena.chunk_size_bytes", 64*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("nats.enabled", true)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.secret_path", "secret/data/mskql/admin")
}

// ListenAddr returns the "host:port" string for the wire-protocol listener.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ListenAddr returns the "host:port" string for the admin HTTP listener.
func (c *AdminConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
