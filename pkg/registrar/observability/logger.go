// Package observability provides logging, metrics, and tracing hooks for
// registrar registries and events.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a slog logger writing to w.
// level is one of debug, info, warn, error (case-insensitive, empty = info).
// format is "json" or "text" (empty = text).
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// EnrichLogger adds the registry name to a logger. Registries and journals
// enrich their logger once; the Log helpers below do not repeat the name.
//
// Example:
//
//	enriched := EnrichLogger(logger, "menu")
//	enriched.Info("loaded") // includes registry=menu
func EnrichLogger(logger *slog.Logger, registry string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("registry", registry))
}

// LogEntryRegistered logs a new registration.
func LogEntryRegistered(logger *slog.Logger, id uint64) {
	if logger == nil {
		return
	}
	logger.Debug("entry registered", slog.Uint64("entry_id", id))
}

// LogEntryRemoved logs the removal of a slot after its handle was released.
func LogEntryRemoved(logger *slog.Logger, id uint64) {
	if logger == nil {
		return
	}
	logger.Debug("entry removed", slog.Uint64("entry_id", id))
}

// LogDuplicateKey logs a rejected keyed registration.
func LogDuplicateKey(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Warn("duplicate key rejected", slog.String("key", fmt.Sprint(key)))
}

// LogDispatch logs a completed event dispatch.
func LogDispatch(logger *slog.Logger, event string, observers int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event", event),
		slog.Int("observers", observers),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogJournalError logs a lifecycle record that could not be stored.
func LogJournalError(logger *slog.Logger, id uint64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.Uint64("entry_id", id),
		slog.String("error", err.Error()),
	)
}
