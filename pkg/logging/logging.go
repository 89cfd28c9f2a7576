// Package logging configures structured logging: colored text through tint
// for terminals, JSON for log collectors.
//
// Usage:
//
//	logging.Setup()                                // from LOG_LEVEL and LOG_FORMAT env
//	slog.SetDefault(logging.New(w, level, "json")) // full control
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
//	LOG_FORMAT: text, json (default: text)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures logging at the level and format given by LOG_LEVEL and
// LOG_FORMAT.
func Setup() {
	slog.SetDefault(New(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT")))
}

// New returns a logger writing to w. format "json" selects the JSON
// handler; anything else selects tint.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
