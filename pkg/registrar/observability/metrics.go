package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records registry and event metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRegister records a slot being occupied.
	RecordRegister(ctx context.Context, registry string)

	// RecordRemove records a slot being freed by its handle.
	RecordRemove(ctx context.Context, registry string)

	// RecordDispatch records one event dispatch and how many observers it reached.
	RecordDispatch(ctx context.Context, event string, observers int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	registered      metric.Int64Counter
	removed         metric.Int64Counter
	live            metric.Int64UpDownCounter
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	dispatchFanout  metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("registrar")

	registered, err := meter.Int64Counter("registrar.entries.registered",
		metric.WithDescription("Number of registrations"),
	)
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter("registrar.entries.removed",
		metric.WithDescription("Number of slots removed by released handles"),
	)
	if err != nil {
		return nil, err
	}

	live, err := meter.Int64UpDownCounter("registrar.entries.live",
		metric.WithDescription("Number of occupied slots"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("registrar.dispatch.count",
		metric.WithDescription("Number of event dispatches"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("registrar.dispatch.latency_ms",
		metric.WithDescription("Event dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatchFanout, err := meter.Int64Histogram("registrar.dispatch.observers",
		metric.WithDescription("Observers notified per dispatch"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		registered:      registered,
		removed:         removed,
		live:            live,
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		dispatchFanout:  dispatchFanout,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordRegister records a registration.
func (m *otelMetrics) RecordRegister(ctx context.Context, registry string) {
	attrs := metric.WithAttributes(attribute.String("registry", registry))
	m.registered.Add(ctx, 1, attrs)
	m.live.Add(ctx, 1, attrs)
}

// RecordRemove records a removal.
func (m *otelMetrics) RecordRemove(ctx context.Context, registry string) {
	attrs := metric.WithAttributes(attribute.String("registry", registry))
	m.removed.Add(ctx, 1, attrs)
	m.live.Add(ctx, -1, attrs)
}

// RecordDispatch records a dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, event string, observers int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("event", event))
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.dispatchFanout.Record(ctx, int64(observers), attrs)
}
