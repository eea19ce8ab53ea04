package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and registries return
// these (optionally wrapped) so services can translate them into OCPI
// responses.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyExists: insert-if-absent found an existing entry
// - ErrDowngrade: write carries a LastUpdated not newer than the stored one
// - ErrConcurrentModification: compare-and-swap lost against another writer
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/ocpierrors
// directly.
var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrDowngrade              = errors.New("downgrade rejected")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidState           = errors.New("invalid state")
	ErrUnavailable            = errors.New("unavailable")
)
