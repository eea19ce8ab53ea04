// Package notify implements the per-resource-type callback fan-out fired
// after accepted store mutations. Subscribers are plain functions invoked
// synchronously in registration order; a panicking subscriber is logged and
// skipped so a broken observer can never fail or roll back the write that
// triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Event names the kind of mutation a notification reports.
type Event string

const (
	EventAdded         Event = "added"
	EventChanged       Event = "changed"
	EventStatusChanged Event = "statusChanged"
	EventRemoved       Event = "removed"
)

// Callback observes one mutated resource.
type Callback[T any] func(ctx context.Context, item T)

// Bus holds the subscriber lists for one resource type.
type Bus[T any] struct {
	logger    *slog.Logger
	onFailure func(event Event)

	mu            sync.RWMutex
	added         []Callback[T]
	changed       []Callback[T]
	statusChanged []Callback[T]
	removed       []Callback[T]
}

// Option configures a Bus.
type Option[T any] func(*Bus[T])

// WithFailureHook installs a hook invoked once per recovered subscriber
// panic, typically to bump a metrics counter.
func WithFailureHook[T any](hook func(event Event)) Option[T] {
	return func(b *Bus[T]) { b.onFailure = hook }
}

// NewBus constructs a bus logging recovered subscriber panics to logger.
func NewBus[T any](logger *slog.Logger, opts ...Option[T]) *Bus[T] {
	b := &Bus[T]{logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnAdded registers a callback for newly created resources.
func (b *Bus[T]) OnAdded(cb Callback[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added = append(b.added, cb)
}

// OnChanged registers a callback for structurally changed resources.
func (b *Bus[T]) OnChanged(cb Callback[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changed = append(b.changed, cb)
}

// OnStatusChanged registers a callback for pure status changes.
func (b *Bus[T]) OnStatusChanged(cb Callback[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusChanged = append(b.statusChanged, cb)
}

// OnRemoved registers a callback for removed resources.
func (b *Bus[T]) OnRemoved(cb Callback[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, cb)
}

// Added fires the added callbacks.
func (b *Bus[T]) Added(ctx context.Context, item T) {
	b.publish(ctx, EventAdded, b.snapshot(&b.added), item)
}

// Changed fires the changed callbacks.
func (b *Bus[T]) Changed(ctx context.Context, item T) {
	b.publish(ctx, EventChanged, b.snapshot(&b.changed), item)
}

// StatusChanged fires the status-changed callbacks.
func (b *Bus[T]) StatusChanged(ctx context.Context, item T) {
	b.publish(ctx, EventStatusChanged, b.snapshot(&b.statusChanged), item)
}

// Removed fires the removed callbacks.
func (b *Bus[T]) Removed(ctx context.Context, item T) {
	b.publish(ctx, EventRemoved, b.snapshot(&b.removed), item)
}

func (b *Bus[T]) snapshot(list *[]Callback[T]) []Callback[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Callback[T], len(*list))
	copy(out, *list)
	return out
}

func (b *Bus[T]) publish(ctx context.Context, event Event, cbs []Callback[T], item T) {
	for i, cb := range cbs {
		b.invoke(ctx, event, i, cb, item)
	}
}

// invoke runs one subscriber with panic isolation.
func (b *Bus[T]) invoke(ctx context.Context, event Event, idx int, cb Callback[T], item T) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.ErrorContext(ctx, "notification subscriber panicked",
					"event", string(event),
					"subscriber", idx,
					"panic", r,
				)
			}
			if b.onFailure != nil {
				b.onFailure(event)
			}
		}
	}()
	cb(ctx, item)
}
