package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the global slog logger. Lines go to stderr in the pretty
// format, colored when stderr is a real terminal; the daemon's redirected
// stderr gets the same lines uncolored. LOG_LEVEL picks the threshold
// (debug/info/warn/error; default info). Call once early in main, before
// anything logs.
func Init() {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	h := NewPretty(os.Stderr, level, stderrIsTTY())
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// stderrIsTTY checks NO_COLOR and TERM=dumb per clig.dev guidelines.
func stderrIsTTY() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
