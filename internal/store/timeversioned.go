package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// TimeAccessors extends Accessors with the NotBefore stamp that separates
// the coexisting versions of one id.
type TimeAccessors[K comparable, T any] struct {
	Key       func(T) K
	UpdatedAt func(T) time.Time
	// NotBefore returns the start of the version's validity window; nil
	// means "valid since the beginning of time".
	NotBefore func(T) *time.Time
}

type timeEntry[T any] struct {
	value     T
	notBefore time.Time
	rev       uint64
}

// TimeVersioned keeps multiple time-bounded versions per id, ordered by
// NotBefore, and answers "the version active at time t" as a predecessor
// query. Tariffs are stored this way: a price change is a new version, not
// an overwrite.
type TimeVersioned[K comparable, T any] struct {
	name string
	acc  TimeAccessors[K, T]

	mu       sync.RWMutex
	versions map[K][]timeEntry[T]
}

// NewTimeVersioned constructs an empty time-versioned store.
func NewTimeVersioned[K comparable, T any](name string, acc TimeAccessors[K, T]) *TimeVersioned[K, T] {
	return &TimeVersioned[K, T]{name: name, acc: acc, versions: make(map[K][]timeEntry[T])}
}

// Name returns the store's log/metrics identifier.
func (s *TimeVersioned[K, T]) Name() string { return s.name }

func (s *TimeVersioned[K, T]) effectiveNotBefore(item T) time.Time {
	if nb := s.acc.NotBefore(item); nb != nil {
		return nb.UTC()
	}
	// Absent NotBefore means valid from the dawn of time; it sorts before
	// every dated version.
	return time.Time{}
}

// AddOrUpdate inserts item as a new version when no existing version shares
// its NotBefore, and otherwise replaces that version under the generic
// downgrade and compare-and-swap rules. The downgrade comparison runs
// against the version whose validity window contains the incoming
// NotBefore, never against an unrelated sibling version.
func (s *TimeVersioned[K, T]) AddOrUpdate(item T, allowDowngrades bool) Result[T] {
	id := s.acc.Key(item)
	nb := s.effectiveNotBefore(item)

	s.mu.RLock()
	containing, hasContaining := predecessor(s.versions[id], nb)
	s.mu.RUnlock()

	if hasContaining && !allowDowngrades &&
		!s.acc.UpdatedAt(item).After(s.acc.UpdatedAt(containing.value)) {
		return failed[T](fmt.Errorf("%s %v: stored %s, incoming %s: %w",
			s.name, id,
			s.acc.UpdatedAt(containing.value).Format(time.RFC3339Nano),
			s.acc.UpdatedAt(item).Format(time.RFC3339Nano),
			sentinel.ErrDowngrade))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[id]
	if i, ok := indexAt(vs, nb); ok {
		if !hasContaining || vs[i].rev != containing.rev {
			return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrConcurrentModification))
		}
		vs[i] = timeEntry[T]{value: item, notBefore: nb, rev: containing.rev + 1}
		return updated(item)
	}
	if hasContaining {
		// A replace of the containing version racing this insert would
		// invalidate the downgrade check performed above.
		if j, ok := indexAt(vs, containing.notBefore); !ok || vs[j].rev != containing.rev {
			return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrConcurrentModification))
		}
	}
	vs = append(vs, timeEntry[T]{value: item, notBefore: nb, rev: 1})
	sort.Slice(vs, func(a, b int) bool { return vs[a].notBefore.Before(vs[b].notBefore) })
	s.versions[id] = vs
	return created(item)
}

// VersionAt returns the version of id active at t: the one with the
// greatest NotBefore not after t.
func (s *TimeVersioned[K, T]) VersionAt(id K, t time.Time) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := predecessor(s.versions[id], t.UTC())
	return e.value, ok
}

// Latest returns the version with the greatest NotBefore, regardless of
// whether it is active yet.
func (s *TimeVersioned[K, T]) Latest(id K) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[id]
	if len(vs) == 0 {
		var zero T
		return zero, false
	}
	return vs[len(vs)-1].value, true
}

// Versions returns all stored versions of id in NotBefore order.
func (s *TimeVersioned[K, T]) Versions(id K) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[id]
	out := make([]T, len(vs))
	for i, e := range vs {
		out[i] = e.value
	}
	return out
}

// IDs returns a snapshot of every stored id.
func (s *TimeVersioned[K, T]) IDs() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]K, 0, len(s.versions))
	for id := range s.versions {
		out = append(out, id)
	}
	return out
}

// Len returns the number of stored ids (not versions).
func (s *TimeVersioned[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

// Remove deletes every version of id, returning them in NotBefore order.
func (s *TimeVersioned[K, T]) Remove(id K) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrNotFound)
	}
	delete(s.versions, id)
	out := make([]T, len(vs))
	for i, e := range vs {
		out[i] = e.value
	}
	return out, nil
}

// RemoveWhere deletes every id whose latest version matches pred, returning
// the removed versions. Like Store.RemoveWhere it sweeps a snapshot.
func (s *TimeVersioned[K, T]) RemoveWhere(pred func(T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []T
	for id, vs := range s.versions {
		if len(vs) == 0 || !pred(vs[len(vs)-1].value) {
			continue
		}
		for _, e := range vs {
			removed = append(removed, e.value)
		}
		delete(s.versions, id)
	}
	return removed
}

// predecessor returns the version with the greatest notBefore <= t from a
// NotBefore-sorted slice.
func predecessor[T any](vs []timeEntry[T], t time.Time) (timeEntry[T], bool) {
	i := sort.Search(len(vs), func(i int) bool { return vs[i].notBefore.After(t) })
	if i == 0 {
		return timeEntry[T]{}, false
	}
	return vs[i-1], true
}

// indexAt returns the position of the version with exactly the given
// notBefore, if present.
func indexAt[T any](vs []timeEntry[T], nb time.Time) (int, bool) {
	i := sort.Search(len(vs), func(i int) bool { return !vs[i].notBefore.Before(nb) })
	if i < len(vs) && vs[i].notBefore.Equal(nb) {
		return i, true
	}
	return 0, false
}
