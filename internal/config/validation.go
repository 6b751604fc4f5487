package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs startup configuration validation (spec §4.8),
// mirroring the teacher's fail-fast ValidationErrors pattern.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateAdmin()...)
	errs = append(errs, c.validateArena()...)
	errs = append(errs, c.validateLog()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", "must be between 1 and 65535"})
	}
	if c.Server.MaxFrameLength <= 0 {
		errs = append(errs, ValidationError{"server.max_frame_length", "must be positive"})
	}
	if c.Server.MsgRatePerSec <= 0 {
		errs = append(errs, ValidationError{"server.msg_rate_per_sec", "must be positive"})
	}
	return errs
}

func (c *Config) validateAdmin() ValidationErrors {
	var errs ValidationErrors
	if !c.Admin.Enabled {
		return errs
	}
	if c.Admin.Port <= 0 || c.Admin.Port > 65535 {
		errs = append(errs, ValidationError{"admin.port", "must be between 1 and 65535"})
	}
	if c.Admin.Port == c.Server.Port {
		errs = append(errs, ValidationError{"admin.port", "must differ from server.port"})
	}
	return errs
}

func (c *Config) validateArena() ValidationErrors {
	var errs ValidationErrors
	if c.Arena.ChunkSizeBytes <= 0 {
		errs = append(errs, ValidationError{"arena.chunk_size_bytes", "must be positive"})
	}
	return errs
}

func (c *Config) validateLog() ValidationErrors {
	var errs ValidationErrors
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{"log.format", "must be \"json\" or \"console\""})
	}
	return errs
}
