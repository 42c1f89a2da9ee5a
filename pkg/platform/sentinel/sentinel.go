package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored documents, not validation
// failures:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: compare-and-set lost to a concurrent writer
// - ErrAlreadyPending: a pending correction request already exists
// - ErrInvalidState: document in wrong state for the requested transition
// - ErrUnavailable: store temporarily unreachable, safe to retry
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyPending = errors.New("already pending")
	ErrInvalidState   = errors.New("invalid state")
	ErrUnavailable    = errors.New("unavailable")
)
