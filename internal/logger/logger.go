// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logger builds the zerolog loggers handed to each pipeline stage.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string

	// Format is "console" for human-readable output or "json".
	Format string

	// Writer receives log lines; nil means stderr.
	Writer io.Writer

	// Fields are attached to every line (e.g. run_id, stage).
	Fields map[string]string
}

// New returns a logger configured by opt.
func New(opt Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.ToLower(opt.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp()
	for k, v := range opt.Fields {
		ctx = ctx.Str(k, v)
	}
	return ctx.Logger()
}

// Nop returns a logger that discards everything. Tests and library callers
// that do not care about logs use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
