// Package store implements the concurrency-safe, optimistically-versioned
// resource maps the OCPI modules are built on. One Store exists per
// (party, resource type) pair; conflict resolution is last-modified-wins
// unless the caller explicitly allows downgrades.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// Accessors tells the generic store how to read and re-stamp the payload
// type. Payloads stay plain structs; the store never reflects over them.
type Accessors[K comparable, T any] struct {
	// Key extracts the resource id.
	Key func(T) K
	// UpdatedAt extracts the LastUpdated stamp used for downgrade checks.
	UpdatedAt func(T) time.Time
	// WithUpdatedAt returns a copy of the value carrying a new stamp.
	// Patch uses it when the merge document does not set the stamp itself.
	WithUpdatedAt func(T, time.Time) T
}

type entry[T any] struct {
	value T
	// rev is the per-key revision counter the compare-and-swap commits
	// against. It changes on every accepted write, including explicit
	// downgrades, so a writer racing on stale state always loses.
	rev uint64
}

// Store is a versioned map from resource id to payload. All per-key
// mutations are atomic; cross-key operations iterate a snapshot and are
// documented as non-atomic (see RemoveWhere).
type Store[K comparable, T any] struct {
	name string
	acc  Accessors[K, T]

	mu      sync.RWMutex
	entries map[K]entry[T]
}

// New constructs an empty store. The name identifies it in log records and
// metrics labels.
func New[K comparable, T any](name string, acc Accessors[K, T]) *Store[K, T] {
	return &Store[K, T]{name: name, acc: acc, entries: make(map[K]entry[T])}
}

// Name returns the store's log/metrics identifier.
func (s *Store[K, T]) Name() string { return s.name }

// Get returns the stored value for id, if any.
func (s *Store[K, T]) Get(id K) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.value, ok
}

// Len returns the number of stored entries.
func (s *Store[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a snapshot of every stored value. Mutations concurrent with
// All may or may not be visible in the snapshot.
func (s *Store[K, T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.value)
	}
	return out
}

// Add inserts item if its id is absent, failing with ErrAlreadyExists
// otherwise, regardless of payload equality.
func (s *Store[K, T]) Add(item T) Result[T] {
	id := s.acc.Key(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrAlreadyExists))
	}
	s.entries[id] = entry[T]{value: item, rev: 1}
	return created(item)
}

// AddIfNotExists is the idempotent-ingestion variant of Add: an existing id
// yields NoOperation with the stored value untouched.
func (s *Store[K, T]) AddIfNotExists(item T) Result[T] {
	id := s.acc.Key(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok {
		return noOperation(existing.value)
	}
	s.entries[id] = entry[T]{value: item, rev: 1}
	return created(item)
}

// AddOrUpdate inserts item when absent and otherwise replaces the existing
// entry under the downgrade rule: without allowDowngrades, the incoming
// LastUpdated must be strictly newer than the stored one. The replace is a
// compare-and-swap against the value read; a lost swap fails once with
// ErrConcurrentModification and is never retried here (the caller decides).
func (s *Store[K, T]) AddOrUpdate(item T, allowDowngrades bool) Result[T] {
	id := s.acc.Key(item)

	s.mu.RLock()
	snap, exists := s.entries[id]
	s.mu.RUnlock()

	if !exists {
		s.mu.Lock()
		if _, appeared := s.entries[id]; appeared {
			s.mu.Unlock()
			return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrConcurrentModification))
		}
		s.entries[id] = entry[T]{value: item, rev: 1}
		s.mu.Unlock()
		return created(item)
	}

	if !allowDowngrades && !s.acc.UpdatedAt(item).After(s.acc.UpdatedAt(snap.value)) {
		return failed[T](fmt.Errorf("%s %v: stored %s, incoming %s: %w",
			s.name, id,
			s.acc.UpdatedAt(snap.value).Format(time.RFC3339Nano),
			s.acc.UpdatedAt(item).Format(time.RFC3339Nano),
			sentinel.ErrDowngrade))
	}

	return s.swap(id, snap.rev, item)
}

// Update is AddOrUpdate restricted to pre-existing ids: an absent id fails
// with ErrNotFound. A removal racing between the read and the swap surfaces
// as ErrConcurrentModification.
func (s *Store[K, T]) Update(item T, allowDowngrades bool) Result[T] {
	id := s.acc.Key(item)

	s.mu.RLock()
	snap, exists := s.entries[id]
	s.mu.RUnlock()
	if !exists {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrNotFound))
	}

	if !allowDowngrades && !s.acc.UpdatedAt(item).After(s.acc.UpdatedAt(snap.value)) {
		return failed[T](fmt.Errorf("%s %v: stored %s, incoming %s: %w",
			s.name, id,
			s.acc.UpdatedAt(snap.value).Format(time.RFC3339Nano),
			s.acc.UpdatedAt(item).Format(time.RFC3339Nano),
			sentinel.ErrDowngrade))
	}

	return s.swap(id, snap.rev, item)
}

// Remove deletes the entry for id, returning the removed value so callers
// can log and notify.
func (s *Store[K, T]) Remove(id K) Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrNotFound))
	}
	delete(s.entries, id)
	return updated(e.value)
}

// RemoveWhere deletes every entry matching pred and returns the removed
// values. It iterates a snapshot: inserts racing the sweep may or may not
// be considered. That window is accepted, not a bug to fix here.
func (s *Store[K, T]) RemoveWhere(pred func(T) bool) []T {
	s.mu.RLock()
	ids := make([]K, 0, len(s.entries))
	for id, e := range s.entries {
		if pred(e.value) {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	removed := make([]T, 0, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && pred(e.value) {
			delete(s.entries, id)
			removed = append(removed, e.value)
		}
	}
	s.mu.Unlock()
	return removed
}

// Clear removes every entry and returns the removed values.
func (s *Store[K, T]) Clear() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.value)
	}
	s.entries = make(map[K]entry[T])
	return out
}

// swap commits item if the entry's revision still matches the one the
// caller read its snapshot at.
func (s *Store[K, T]) swap(id K, readRev uint64, item T) Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[id]
	if !ok || current.rev != readRev {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrConcurrentModification))
	}
	s.entries[id] = entry[T]{value: item, rev: readRev + 1}
	return updated(item)
}
