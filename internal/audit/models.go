// Package audit appends an immutable trail of lifecycle transitions. Entries
// are written to a transactional outbox and relayed to Kafka out-of-band;
// the broker is the long-term source of truth for the trail.
package audit

import (
	"time"

	"medvault/pkg/domain"
)

// Entry is one audited transition. Keep it transport-agnostic so stores and
// sinks can fan out.
type Entry struct {
	ID        domain.EventID
	Timestamp time.Time
	// Action is the transition name, e.g. "record_verified".
	Action  string
	ActorID domain.ActorID

	// Optional context, set per action.
	RecordID            domain.RecordID
	RecordStatus        domain.RecordStatus
	CorrectionRequestID domain.CorrectionRequestID
	SubjectActorID      domain.ActorID
}
