// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the structured zerolog logger shared by every
// stage of a harvest run.
//
// Progress lines meant for the operator are still written to the command's
// output with fmt.Fprintf; the structured log carries the per-request detail
// (retries, page offsets, classified failures) that is only useful when
// something goes wrong.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field names used across packages so log lines can be filtered uniformly.
const (
	FieldComponent  = "component"
	FieldTarget     = "target_id"
	FieldOp         = "op"
	FieldAttempt    = "attempt"
	FieldOffset     = "offset"
	FieldCollection = "collection"
	FieldErrorClass = "error_class"
)

// Config holds logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error, disabled (default info).
	Level string

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Setup configures the global logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}
