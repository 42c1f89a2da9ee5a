package records

import (
	"context"

	"medvault/internal/policy"
	"medvault/pkg/domain"
)

// ListFilter narrows a record listing to what the caller's role may see.
// Scope selects the ownership column; ActorID is the caller. Stores apply
// the verified-only restriction themselves when Scope is ScopeSubject.
type ListFilter struct {
	Scope   policy.Scope
	ActorID domain.ActorID
}

// Store persists records. Implementations return sentinel errors
// (sentinel.ErrNotFound, sentinel.ErrConflict, sentinel.ErrUnavailable); the
// service translates them into coded domain errors.
type Store interface {
	Create(ctx context.Context, record domain.Record) error
	Get(ctx context.Context, id domain.RecordID) (domain.Record, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Record, error)
	// UpdateIfStatus is the per-record compare-and-set: it writes the updated
	// record only if the stored status still equals expected, and returns
	// sentinel.ErrConflict when a concurrent writer got there first. The write
	// replaces the whole document and bumps Version.
	UpdateIfStatus(ctx context.Context, updated domain.Record, expected domain.RecordStatus) error
}

// CorrectionStore persists correction requests. Requests are only ever
// mutated through the enclosing record's transition, so no compare-and-set is
// needed here; the record's CAS serializes resolver writes.
type CorrectionStore interface {
	Create(ctx context.Context, request domain.CorrectionRequest) error
	Get(ctx context.Context, id domain.CorrectionRequestID) (domain.CorrectionRequest, error)
	ListByRecord(ctx context.Context, recordID domain.RecordID) ([]domain.CorrectionRequest, error)
	Update(ctx context.Context, request domain.CorrectionRequest) error
	// CountPending backs the hasActiveCorrection recompute.
	CountPending(ctx context.Context, recordID domain.RecordID) (int, error)
}

// Tx provides the transactional boundary for resolveCorrection, which must
// touch the record and its correction request atomically. Implementations may
// wrap a database transaction or, in-memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
