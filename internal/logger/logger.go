// Package logger provides structured logging using log/slog.
// It sets up a JSON handler with service-level context and small helpers
// for attaching trading identifiers to log records.
package logger

import (
	"log/slog"
	"os"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded, and is
// installed as the slog default so package-level slog calls share it.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)

	return logger
}

// Account returns a standard attribute for an account identifier.
func Account(id string) slog.Attr { return slog.String("account_id", id) }

// Instrument returns a standard attribute for an instrument code.
func Instrument(code string) slog.Attr { return slog.String("code", code) }

// StrategyID returns a standard attribute for a strategy identifier.
func StrategyID(id int64) slog.Attr { return slog.Int64("strategy_id", id) }
