// Package traced provides a registry that reports every registration and
// removal to lifecycle observers.
//
// Notifications are delivered while the registry's write lock is held, so
// observers see transitions in exactly the order they were applied, with
// the value as it was just before removal. Observers must not touch the
// traced registry they observe from inside Notify.
package traced

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/registrar/pkg/registrar"
	"github.com/randalmurphal/registrar/pkg/registrar/event"
	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

// Lifecycle is a registry transition.
type Lifecycle int

const (
	// Register is reported after a value is inserted.
	Register Lifecycle = iota
	// Unregister is reported just before a value is dropped.
	Unregister
)

// String returns "Register" or "Unregister".
func (l Lifecycle) String() string {
	switch l {
	case Register:
		return "Register"
	case Unregister:
		return "Unregister"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// Trace is one lifecycle notification.
type Trace[T any] struct {
	Kind  Lifecycle
	ID    registrar.ID
	Value T
}

// String formats the trace as "<kind> <id> <value>".
func (t Trace[T]) String() string {
	return fmt.Sprintf("%s %d %v", t.Kind, t.ID, t.Value)
}

type options struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures a traced Registry.
type Option func(*options)

// WithName names the registry. The trace event is named "<name>.trace".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger for both the registry and its trace event.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder for both the registry and its trace event.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSpans sets the span manager used for trace dispatches.
func WithSpans(sm observability.SpanManager) Option {
	return func(o *options) {
		o.spans = sm
	}
}

// Registry is a registrar.Registry that notifies lifecycle observers.
// Copies share storage and observers.
type Registry[T any] struct {
	inner  registrar.Registry[T]
	events event.Event[Trace[T]]
}

// New creates an empty traced registry.
func New[T any](opts ...Option) Registry[T] {
	o := options{name: "traced"}
	for _, fn := range opts {
		fn(&o)
	}

	r := Registry[T]{
		inner: registrar.New[T](
			registrar.WithName(o.name),
			registrar.WithLogger(o.logger),
			registrar.WithMetrics(o.metrics),
		),
		events: event.New[Trace[T]](
			event.WithName(o.name+".trace"),
			event.WithLogger(o.logger),
			event.WithMetrics(o.metrics),
			event.WithSpans(o.spans),
		),
	}

	events := r.events
	r.inner.SetRegisterCallback(func(id registrar.ID, value T) {
		events.Dispatch(Trace[T]{Kind: Register, ID: id, Value: value})
	})
	r.inner.SetRemoveCallback(func(id registrar.ID, value T) {
		events.Dispatch(Trace[T]{Kind: Unregister, ID: id, Value: value})
	})
	return r
}

// Name returns the registry name.
func (r Registry[T]) Name() string {
	return r.inner.Name()
}

// Clone returns another handle to the same registry.
func (r Registry[T]) Clone() Registry[T] {
	return r
}

// Register stores value and notifies observers with Register.
// Releasing the returned entry notifies them with Unregister.
func (r Registry[T]) Register(value T) *registrar.Entry[T] {
	return r.inner.Register(value)
}

// RegisterObserver adds a lifecycle observer. Releasing the handle stops
// further notifications.
func (r Registry[T]) RegisterObserver(o event.Observer[Trace[T]]) *registrar.AnyEntry {
	return r.events.RegisterObserver(o)
}

// Subscribe is RegisterObserver for a plain function.
func (r Registry[T]) Subscribe(fn func(t Trace[T])) *registrar.AnyEntry {
	return r.events.Subscribe(fn)
}

// Observers returns the number of registered lifecycle observers.
func (r Registry[T]) Observers() int {
	return r.events.Len()
}

// Len returns the number of live entries.
func (r Registry[T]) Len() int {
	return r.inner.Len()
}

// Read acquires the read lock. The caller must call Unlock on the guard.
func (r Registry[T]) Read() *registrar.ReadGuard[T] {
	return r.inner.Read()
}

// Write acquires the write lock. In-place updates through the guard are
// not reported to observers.
func (r Registry[T]) Write() *registrar.WriteGuard[T] {
	return r.inner.Write()
}

// View runs fn under the read lock.
func (r Registry[T]) View(fn func(g *registrar.ReadGuard[T])) {
	r.inner.View(fn)
}

// Mutate runs fn under the write lock.
func (r Registry[T]) Mutate(fn func(g *registrar.WriteGuard[T])) {
	r.inner.Mutate(fn)
}

func (r Registry[T]) String() string {
	return r.inner.String()
}
