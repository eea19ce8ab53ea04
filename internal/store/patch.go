package store

import (
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// statusOnlyKeys are the merge-patch members that count as a pure status
// change. A patch touching nothing else fires StatusChanged instead of
// Changed downstream.
var statusOnlyKeys = map[string]struct{}{
	"status":       {},
	"last_updated": {},
}

// Patch applies an RFC 7396 merge patch to the currently stored value and
// commits the candidate through the same downgrade and compare-and-swap
// rules as Update. A failing patch never mutates the store.
//
// If the patch document does not set last_updated itself, the candidate is
// re-stamped to now, so that replaying an identical patch later is rejected
// as a downgrade rather than silently accepted twice.
func (s *Store[K, T]) Patch(id K, patch json.RawMessage, allowDowngrades bool) Result[T] {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(patch, &members); err != nil {
		return failed[T](ocpierrors.Wrap(err, ocpierrors.CodeInvalidParameters, "invalid merge patch"))
	}

	s.mu.RLock()
	snap, exists := s.entries[id]
	s.mu.RUnlock()
	if !exists {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrNotFound))
	}

	current, err := json.Marshal(snap.value)
	if err != nil {
		return failed[T](fmt.Errorf("%s %v: marshal stored value: %w", s.name, id, err))
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return failed[T](ocpierrors.Wrap(err, ocpierrors.CodeInvalidParameters, "invalid merge patch"))
	}

	var candidate T
	if err := json.Unmarshal(merged, &candidate); err != nil {
		return failed[T](ocpierrors.Wrap(err, ocpierrors.CodeInvalidParameters, "merge patch produced an invalid document"))
	}
	if s.acc.Key(candidate) != id {
		return failed[T](ocpierrors.New(ocpierrors.CodeInvalidParameters, "merge patch may not change the resource id"))
	}

	if _, patched := members["last_updated"]; !patched {
		candidate = s.acc.WithUpdatedAt(candidate, time.Now().UTC())
	}

	if !allowDowngrades && !s.acc.UpdatedAt(candidate).After(s.acc.UpdatedAt(snap.value)) {
		return failed[T](fmt.Errorf("%s %v: %w", s.name, id, sentinel.ErrDowngrade))
	}

	res := s.swap(id, snap.rev, candidate)
	res.StatusOnly = isStatusOnly(members)
	return res
}

func isStatusOnly(members map[string]json.RawMessage) bool {
	if len(members) == 0 {
		return false
	}
	status := false
	for k := range members {
		if _, ok := statusOnlyKeys[k]; !ok {
			return false
		}
		if k == "status" {
			status = true
		}
	}
	return status
}
