package journal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/registrar/pkg/registrar"
	"github.com/randalmurphal/registrar/pkg/registrar/observability"
	"github.com/randalmurphal/registrar/pkg/registrar/traced"
)

type attachOptions struct {
	registry string
	session  string
	format   func(any) string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures Attach.
type Option func(*attachOptions)

// WithRegistryName overrides the registry name written to records.
// Default: the traced registry's name.
func WithRegistryName(name string) Option {
	return func(o *attachOptions) {
		if name != "" {
			o.registry = name
		}
	}
}

// WithSession sets the session ID written to records.
// Default: a new random UUID per Attach call.
func WithSession(session string) Option {
	return func(o *attachOptions) {
		if session != "" {
			o.session = session
		}
	}
}

// WithFormatter sets how values are rendered into Record.Value.
// Default: fmt.Sprint.
func WithFormatter[T any](fn func(T) string) Option {
	return func(o *attachOptions) {
		if fn == nil {
			return
		}
		o.format = func(v any) string {
			if tv, ok := v.(T); ok {
				return fn(tv)
			}
			return fmt.Sprint(v)
		}
	}
}

// WithLogger logs failed appends at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *attachOptions) {
		o.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *attachOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Attach subscribes store to reg's lifecycle notifications. Every Register
// and Unregister is appended as one Record. Releasing the returned handle
// stops recording.
//
// Appends run inside the registry's notification path, so a slow store
// slows registration and release. Append failures are logged, never
// returned to the registry.
func Attach[T any](reg traced.Registry[T], store Store, opts ...Option) *registrar.AnyEntry {
	o := attachOptions{
		registry: reg.Name(),
		session:  uuid.NewString(),
		format:   func(v any) string { return fmt.Sprint(v) },
		now:      time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}

	logger := observability.EnrichLogger(o.logger, o.registry)

	return reg.Subscribe(func(tr traced.Trace[T]) {
		rec := Record{
			ID:       uuid.NewString(),
			Session:  o.session,
			Registry: o.registry,
			Kind:     kindOf(tr.Kind),
			EntryID:  uint64(tr.ID),
			Value:    o.format(tr.Value),
			At:       o.now().UTC(),
		}
		if err := store.Append(rec); err != nil {
			observability.LogJournalError(logger, rec.EntryID, err)
		}
	})
}

func kindOf(l traced.Lifecycle) Kind {
	if l == traced.Unregister {
		return KindUnregister
	}
	return KindRegister
}
