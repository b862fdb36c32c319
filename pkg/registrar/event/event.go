// Package event provides synchronous observer dispatch built on a registrar
// registry.
//
// Observers are registrations like any other: RegisterObserver returns a
// handle and releasing it unsubscribes the observer. Dispatch calls every
// observer registered at that moment, in registration order, on the
// caller's goroutine.
//
//	clicked := event.New[Click](event.WithName("clicked"))
//	sub := clicked.Subscribe(func(c Click) { fmt.Println(c.X, c.Y) })
//	defer sub.Release()
//
//	clicked.Dispatch(Click{X: 1, Y: 2})
//
// Dispatch holds the observer registry's read lock for its whole duration.
// An observer must therefore not subscribe or unsubscribe observers of the
// same Event from inside Notify; doing so deadlocks.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/registrar/pkg/registrar"
	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

// Observer receives dispatched data.
type Observer[T any] interface {
	Notify(data T)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc[T any] func(data T)

// Notify calls f(data).
func (f ObserverFunc[T]) Notify(data T) {
	f(data)
}

type options struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Event.
type Option func(*options)

// WithName sets the event name used in logs, metrics, and spans.
// Default: "event"
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger enables debug logging of dispatches and observer registrations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records dispatch counts, latency, and fan-out.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpans wraps every DispatchContext call in a trace span.
func WithSpans(sm observability.SpanManager) Option {
	return func(o *options) {
		if sm != nil {
			o.spans = sm
		}
	}
}

// Event fans data out to registered observers. Copies of an Event share
// their observers; create events with New.
type Event[T any] struct {
	observers registrar.Registry[Observer[T]]
	opts      options
}

// New creates an event with no observers.
func New[T any](opts ...Option) Event[T] {
	o := options{
		name:    "event",
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return Event[T]{
		observers: registrar.New[Observer[T]](
			registrar.WithName(o.name+".observers"),
			registrar.WithLogger(o.logger),
			registrar.WithMetrics(o.metrics),
		),
		opts: o,
	}
}

// Name returns the name configured with WithName.
func (e Event[T]) Name() string {
	return e.opts.name
}

// RegisterObserver adds o and returns the handle that keeps it subscribed.
// Releasing the handle removes the observer; dispatches that start after
// the release no longer reach it.
func (e Event[T]) RegisterObserver(o Observer[T]) *registrar.AnyEntry {
	return e.observers.Register(o).Generic()
}

// Subscribe is RegisterObserver for a plain function.
func (e Event[T]) Subscribe(fn func(data T)) *registrar.AnyEntry {
	return e.RegisterObserver(ObserverFunc[T](fn))
}

// Len returns the number of registered observers.
func (e Event[T]) Len() int {
	return e.observers.Len()
}

// Dispatch calls every registered observer with data, in registration
// order. A panicking observer stops the dispatch and the panic propagates
// to the caller.
func (e Event[T]) Dispatch(data T) {
	e.DispatchContext(context.Background(), data)
}

// DispatchContext is Dispatch with a context for the dispatch span.
func (e Event[T]) DispatchContext(ctx context.Context, data T) {
	start := time.Now()

	g := e.observers.Read()
	defer g.Unlock()

	n := g.Len()
	ctx, span := e.opts.spans.StartDispatchSpan(ctx, e.opts.name, n)
	defer func() {
		r := recover()
		if r != nil {
			e.opts.spans.AddSpanEvent(ctx, "observer.panic", attribute.String("panic", fmt.Sprint(r)))
			e.opts.spans.EndSpanWithError(span, fmt.Errorf("observer panicked: %v", r))
		} else {
			e.opts.spans.EndSpanWithError(span, nil)
		}
		// Aborted dispatches are counted too, one per span.
		elapsed := time.Since(start)
		e.opts.metrics.RecordDispatch(ctx, e.opts.name, n, elapsed)
		observability.LogDispatch(e.opts.logger, e.opts.name, n, float64(elapsed.Microseconds())/1000)
		if r != nil {
			panic(r)
		}
	}()

	for _, o := range g.All() {
		o.Notify(data)
	}
}
