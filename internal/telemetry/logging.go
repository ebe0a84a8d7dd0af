package telemetry

import (
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger every service uses, tagged with the
// service name. LOG_LEVEL accepts debug, info, warn, or error; anything else
// falls back to info.
func NewLogger(serviceName string) *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", serviceName)
}
