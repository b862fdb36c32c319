package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/registrar/pkg/registrar"
	"github.com/randalmurphal/registrar/pkg/registrar/event"
	"github.com/randalmurphal/registrar/pkg/registrar/journal"
	"github.com/randalmurphal/registrar/pkg/registrar/observability"
	"github.com/randalmurphal/registrar/pkg/registrar/traced"
)

// Journal drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds registrar settings.
type Config struct {
	// Name prefixes registry and event names.
	Name    string        `yaml:"name" json:"name"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
}

// MetricsConfig toggles OpenTelemetry metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TracingConfig toggles OpenTelemetry dispatch spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// JournalConfig selects the lifecycle journal backend.
type JournalConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

// Default returns the configuration used when no file is given:
// info-level text logging, no metrics or tracing, in-memory journal.
func Default() Config {
	return Config{
		Name:    "registrar",
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Journal: JournalConfig{Driver: DriverMemory},
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	var lvl slog.Level
	if c.Logging.Level != "" {
		if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
			return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Journal.Driver {
	case "", DriverMemory:
	case DriverSQLite:
		if c.Journal.Path == "" {
			return fmt.Errorf("%w: journal.path is required for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: journal.driver %q", ErrInvalidConfig, c.Journal.Driver)
	}
	return nil
}

// Logger builds the configured logger writing to w.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	return observability.NewLogger(w, c.Logging.Level, c.Logging.Format)
}

// MetricsRecorder returns the OpenTelemetry recorder when metrics are
// enabled and a no-op recorder otherwise.
func (c Config) MetricsRecorder() observability.MetricsRecorder {
	if c.Metrics.Enabled {
		return observability.NewMetricsRecorder()
	}
	return observability.NoopMetrics{}
}

// SpanManager returns the OpenTelemetry span manager when tracing is
// enabled and a no-op manager otherwise.
func (c Config) SpanManager() observability.SpanManager {
	if c.Tracing.Enabled {
		return observability.NewSpanManager()
	}
	return observability.NoopSpanManager{}
}

// QualifiedName joins the configured name prefix and name with a dot.
func (c Config) QualifiedName(name string) string {
	switch {
	case c.Name == "":
		return name
	case name == "":
		return c.Name
	default:
		return c.Name + "." + name
	}
}

// Options returns registry options for a registry called name.
func (c Config) Options(name string, logger *slog.Logger) []registrar.Option {
	return []registrar.Option{
		registrar.WithName(c.QualifiedName(name)),
		registrar.WithLogger(logger),
		registrar.WithMetrics(c.MetricsRecorder()),
	}
}

// EventOptions returns event options for an event called name.
func (c Config) EventOptions(name string, logger *slog.Logger) []event.Option {
	return []event.Option{
		event.WithName(c.QualifiedName(name)),
		event.WithLogger(logger),
		event.WithMetrics(c.MetricsRecorder()),
		event.WithSpans(c.SpanManager()),
	}
}

// TracedOptions returns traced registry options for a registry called name.
func (c Config) TracedOptions(name string, logger *slog.Logger) []traced.Option {
	return []traced.Option{
		traced.WithName(c.QualifiedName(name)),
		traced.WithLogger(logger),
		traced.WithMetrics(c.MetricsRecorder()),
		traced.WithSpans(c.SpanManager()),
	}
}

// OpenJournal opens the configured journal store.
func (c Config) OpenJournal() (journal.Store, error) {
	switch c.Journal.Driver {
	case "", DriverMemory:
		return journal.NewMemoryStore(), nil
	case DriverSQLite:
		store, err := journal.NewSQLiteStore(c.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: journal.driver %q", ErrInvalidConfig, c.Journal.Driver)
	}
}
