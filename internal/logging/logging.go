package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide JSON logger. level is one of
// debug/info/warn/error, case-insensitive; anything else falls back to info.
func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

// Component returns a child logger tagged with a "component" attribute,
// so every line from the MQTT loop, DB loop, buzzer controller, etc. is
// attributable without each of them formatting their own prefix.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		return NewLogger("info").With("component", name)
	}
	return base.With("component", name)
}
