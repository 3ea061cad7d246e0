// Package sysutil holds process-level helpers for cmd/server.
package sysutil

import (
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelOf maps a configured level name to a zerolog level. Empty and
// unknown names mean info; "warning" is accepted for warn.
func LevelOf(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetupLogger installs the global logger writing to w and returns it.
// Lines are JSON with an RFC 3339 UTC timestamp unless pretty asks for the
// console format.
func SetupLogger(w io.Writer, level string, pretty bool, service string) zerolog.Logger {
	zerolog.SetGlobalLevel(LevelOf(level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	return log.Logger
}

// Version reports the build version: the linker-provided value when set,
// then the main module version recorded by the toolchain, then "dev".
func Version(linked string) string {
	if v := strings.TrimSpace(linked); v != "" {
		return v
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "dev"
}
