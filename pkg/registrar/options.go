package registrar

import (
	"log/slog"

	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

// options holds configuration shared by Registry and Map.
type options struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

func defaultOptions() options {
	return options{
		name:    "registry",
		metrics: observability.NoopMetrics{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	o.logger = observability.EnrichLogger(o.logger, o.name)
	return o
}

// Option configures a Registry or Map.
type Option func(*options)

// WithName sets the name used in logs, metrics, and errors.
// Default: "registry"
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger enables debug logging of registrations and removals.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records registrations and removals.
//
// Example:
//
//	menu := registrar.New[MenuItem](
//	    registrar.WithName("menu"),
//	    registrar.WithMetrics(observability.NewMetricsRecorder()),
//	)
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
