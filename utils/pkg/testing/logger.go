// Package wltesting holds helpers shared by the waterline test suites.
package wltesting

import (
	"log/slog"
	"os"
)

// NewLogger returns the logger used across test suites. Logs are suppressed
// unless WATERLINE_TEST_DEBUG is set: "1" enables info, "2" enables debug.
func NewLogger() *slog.Logger {
	level := slog.LevelError
	switch os.Getenv("WATERLINE_TEST_DEBUG") {
	case "1":
		level = slog.LevelInfo
	case "2":
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
