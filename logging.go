// logging.go: Structured logging for Morpheus
//
// The library never logs through a global by itself: components receive a
// zerolog.Logger (zerolog.Nop() when none is configured). Binaries call
// SetupLogger once and hand the resulting logger down.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "warn"

// ParseLogLevel converts a level name (trace, debug, info, warn, error) into
// a zerolog level. The empty string selects DefaultLogLevel.
func ParseLogLevel(level string) (zerolog.Level, error) {
	if level == "" {
		level = DefaultLogLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, errors.Wrap(err, ErrCodeInvalidConfig,
			fmt.Sprintf("invalid log level %q", level))
	}
	return parsed, nil
}

// NewConsoleLogger builds a human-readable logger writing to w.
func NewConsoleLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    true,
	}
	logger := zerolog.New(console).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// SetupLogger configures the global logger and returns it.
func SetupLogger(level string, w io.Writer) (zerolog.Logger, error) {
	parsed, err := ParseLogLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	log.Logger = NewConsoleLogger(w, parsed)
	log.Debug().Str("level", parsed.String()).Msg("Logger initialized")

	return log.Logger, nil
}

// ComponentLogger returns a logger tagged with the given component name.
func ComponentLogger(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
