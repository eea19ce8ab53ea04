package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

type item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Status      string    `json:"status,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func newItemStore() *Store[string, item] {
	return New("items", Accessors[string, item]{
		Key:       func(i item) string { return i.ID },
		UpdatedAt: func(i item) time.Time { return i.LastUpdated },
		WithUpdatedAt: func(i item, t time.Time) item {
			i.LastUpdated = t
			return i
		},
	})
}

func ts(offset time.Duration) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
}

func TestAddRejectsDuplicate(t *testing.T) {
	s := newItemStore()

	res := s.Add(item{ID: "a", LastUpdated: ts(0)})
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.NotEmpty(t, res.EventTrackingID)

	res = s.Add(item{ID: "a", LastUpdated: ts(time.Minute)})
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrAlreadyExists)

	stored, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, ts(0), stored.LastUpdated)
}

func TestAddIfNotExistsIsIdempotent(t *testing.T) {
	s := newItemStore()

	res := s.AddIfNotExists(item{ID: "a", Name: "first", LastUpdated: ts(0)})
	require.Equal(t, OutcomeCreated, res.Outcome)

	res = s.AddIfNotExists(item{ID: "a", Name: "second", LastUpdated: ts(time.Minute)})
	require.Equal(t, OutcomeNoOperation, res.Outcome)

	stored, _ := s.Get("a")
	assert.Equal(t, "first", stored.Name)
}

func TestAddOrUpdateEnforcesMonotonicTimestamps(t *testing.T) {
	s := newItemStore()

	res := s.AddOrUpdate(item{ID: "a", LastUpdated: ts(0)}, false)
	require.Equal(t, OutcomeCreated, res.Outcome)

	res = s.AddOrUpdate(item{ID: "a", LastUpdated: ts(time.Minute)}, false)
	require.Equal(t, OutcomeUpdated, res.Outcome)

	// Equal timestamp is a downgrade too.
	res = s.AddOrUpdate(item{ID: "a", LastUpdated: ts(time.Minute)}, false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrDowngrade)

	res = s.AddOrUpdate(item{ID: "a", LastUpdated: ts(-time.Minute)}, false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrDowngrade)

	// Explicit downgrade permission accepts the older document.
	res = s.AddOrUpdate(item{ID: "a", LastUpdated: ts(-time.Minute)}, true)
	require.Equal(t, OutcomeUpdated, res.Outcome)

	stored, _ := s.Get("a")
	assert.Equal(t, ts(-time.Minute), stored.LastUpdated)
}

func TestUpdateRequiresExistingResource(t *testing.T) {
	s := newItemStore()

	res := s.Update(item{ID: "missing", LastUpdated: ts(0)}, false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)

	s.Add(item{ID: "a", LastUpdated: ts(0)})
	res = s.Update(item{ID: "a", Name: "renamed", LastUpdated: ts(time.Minute)}, false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "renamed", res.Resource.Name)
}

func TestRemove(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", Name: "gone", LastUpdated: ts(0)})

	res := s.Remove("a")
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "gone", res.Resource.Name)
	assert.Equal(t, 0, s.Len())

	res = s.Remove("a")
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}

func TestRemoveWhere(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", Status: "old", LastUpdated: ts(0)})
	s.Add(item{ID: "b", Status: "new", LastUpdated: ts(0)})
	s.Add(item{ID: "c", Status: "old", LastUpdated: ts(0)})

	removed := s.RemoveWhere(func(i item) bool { return i.Status == "old" })
	assert.Len(t, removed, 2)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("b")
	assert.True(t, ok)
}

// Concurrent writers race snapshot reads against commits; every loser must
// surface as a failed result carrying one of the two rejection sentinels,
// and the winning timestamp must be the newest accepted one.
func TestConcurrentAddOrUpdate(t *testing.T) {
	s := newItemStore()
	require.Equal(t, OutcomeCreated, s.AddOrUpdate(item{ID: "a", LastUpdated: ts(0)}, false).Outcome)

	const writers = 32
	results := make([]Result[item], writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.AddOrUpdate(item{
				ID:          "a",
				Name:        fmt.Sprintf("writer-%d", i),
				LastUpdated: ts(time.Duration(i+1) * time.Second),
			}, false)
		}(i)
	}
	wg.Wait()

	var newest time.Time
	updates := 0
	for _, res := range results {
		switch res.Outcome {
		case OutcomeUpdated:
			updates++
			if res.Resource.LastUpdated.After(newest) {
				newest = res.Resource.LastUpdated
			}
		case OutcomeFailed:
			if !errors.Is(res.Err, sentinel.ErrDowngrade) && !errors.Is(res.Err, sentinel.ErrConcurrentModification) {
				t.Fatalf("unexpected failure: %v", res.Err)
			}
		default:
			t.Fatalf("unexpected outcome %q", res.Outcome)
		}
	}
	require.GreaterOrEqual(t, updates, 1)

	stored, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, newest, stored.LastUpdated)
}

func TestPatchMergesAndRestamps(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", Name: "before", Status: "AVAILABLE", LastUpdated: ts(0)})

	res := s.Patch("a", json.RawMessage(`{"name":"after"}`), false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.False(t, res.StatusOnly)
	assert.Equal(t, "after", res.Resource.Name)
	assert.Equal(t, "AVAILABLE", res.Resource.Status)
	// Patch without last_updated re-stamps to now.
	assert.True(t, res.Resource.LastUpdated.After(ts(0)))
}

func TestPatchStatusOnly(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", Status: "AVAILABLE", LastUpdated: time.Now().UTC().Add(-time.Hour)})

	// Patches without last_updated re-stamp to now, so the explicit stamps
	// below stay in the future relative to the wall clock.
	future := func(offset time.Duration) string {
		return time.Now().UTC().Add(offset).Format(time.RFC3339)
	}

	res := s.Patch("a", json.RawMessage(`{"status":"CHARGING"}`), false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.True(t, res.StatusOnly)

	res = s.Patch("a", json.RawMessage(fmt.Sprintf(`{"status":"BLOCKED","last_updated":%q}`, future(time.Hour))), false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.True(t, res.StatusOnly)

	// A patch touching more than status and timestamp is a plain change.
	res = s.Patch("a", json.RawMessage(fmt.Sprintf(`{"status":"AVAILABLE","name":"x","last_updated":%q}`, future(2*time.Hour))), false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.False(t, res.StatusOnly)

	// last_updated alone does not count as a status change.
	res = s.Patch("a", json.RawMessage(fmt.Sprintf(`{"last_updated":%q}`, future(3*time.Hour))), false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.False(t, res.StatusOnly)
}

func TestPatchRejectsIDChange(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", LastUpdated: ts(0)})

	res := s.Patch("a", json.RawMessage(`{"id":"b"}`), false)
	require.True(t, res.Failed())
}

func TestPatchWithExplicitStaleTimestampFailsDowngrade(t *testing.T) {
	s := newItemStore()
	s.Add(item{ID: "a", LastUpdated: ts(0)})

	stamp := ts(time.Minute).Format(time.RFC3339)
	patch := json.RawMessage(fmt.Sprintf(`{"name":"x","last_updated":%q}`, stamp))

	res := s.Patch("a", patch, false)
	require.Equal(t, OutcomeUpdated, res.Outcome)

	// Replaying the identical patch carries the now-stale timestamp.
	res = s.Patch("a", patch, false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrDowngrade)
}

func TestPatchUnknownResource(t *testing.T) {
	s := newItemStore()
	res := s.Patch("missing", json.RawMessage(`{"name":"x"}`), false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}
