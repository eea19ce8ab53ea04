package store

import "github.com/google/uuid"

// Outcome classifies the result of a store mutation.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeUpdated     Outcome = "updated"
	OutcomeNoOperation Outcome = "noOperation"
	OutcomeFailed      Outcome = "failed"
)

// Result is the discriminated outcome of a mutation. Expected failures
// (already exists, unknown id, downgrade, concurrent modification) are
// reported through Err with OutcomeFailed rather than panics or booleans,
// so callers can log and translate them uniformly.
type Result[T any] struct {
	Outcome  Outcome
	Resource T

	// StatusOnly is set by Patch when the merge patch touched nothing but
	// the status and timestamp fields. It selects the StatusChanged
	// notification instead of Changed.
	StatusOnly bool

	// EventTrackingID correlates this mutation across the durable log and
	// request logs.
	EventTrackingID string

	Err error
}

// Failed reports whether the mutation was rejected.
func (r Result[T]) Failed() bool { return r.Outcome == OutcomeFailed }

func created[T any](v T) Result[T] {
	return Result[T]{Outcome: OutcomeCreated, Resource: v, EventTrackingID: uuid.NewString()}
}

func updated[T any](v T) Result[T] {
	return Result[T]{Outcome: OutcomeUpdated, Resource: v, EventTrackingID: uuid.NewString()}
}

func noOperation[T any](v T) Result[T] {
	return Result[T]{Outcome: OutcomeNoOperation, Resource: v, EventTrackingID: uuid.NewString()}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Outcome: OutcomeFailed, EventTrackingID: uuid.NewString(), Err: err}
}
