// Package obs centralizes structured logging so every component logs
// through the same zerolog configuration instead of ad-hoc fmt/log calls.
package obs

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. level is any zerolog
// level name ("debug", "info", ...); format is "json" or "console".
func InitLogger(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: false}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	log.Info().Str("level", logLevel.String()).Str("format", format).Msg("logger initialized")
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Session returns a child logger tagged for one wire-protocol session.
func Session(sessionID, remoteAddr string) zerolog.Logger {
	return log.With().
		Str("component", "session").
		Str("session_id", sessionID).
		Str("remote_addr", remoteAddr).
		Logger()
}
