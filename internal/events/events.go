// Package events carries lifecycle transition events from the records and
// actors services to their subscribers (notification dispatch, audit trail,
// metrics). Subscribers register independently; emitters never know who is
// listening.
package events

import (
	"time"

	"medvault/pkg/domain"
)

// Kind tags the event variant. Exactly one of the optional payload fields is
// set for a given kind.
type Kind string

const (
	KindRecordCreated       Kind = "record_created"
	KindRecordVerified      Kind = "record_verified"
	KindCorrectionRequested Kind = "correction_requested"
	KindCorrectionApproved  Kind = "correction_approved"
	KindCorrectionRejected  Kind = "correction_rejected"
	KindActorRegistered     Kind = "actor_registered"
	KindActorVerified       Kind = "actor_verified"
	KindActorRejected       Kind = "actor_rejected"
)

// Event describes one committed transition. The ID is minted at commit time
// and keys dispatch idempotency downstream; re-publishing an event with the
// same ID must not produce duplicate notifications.
type Event struct {
	ID         domain.EventID
	Kind       Kind
	OccurredAt time.Time
	// ActorID is who performed the transition.
	ActorID domain.ActorID

	// Record is set for record and correction kinds, carrying post-transition
	// state.
	Record *domain.Record
	// Correction is set for the correction kinds.
	Correction *domain.CorrectionRequest
	// Subject is set for the actor kinds: the actor the event is about.
	Subject *domain.Actor
}

// New stamps id and timestamp for a transition that just committed.
func New(kind Kind, actorID domain.ActorID) Event {
	return Event{
		ID:         domain.NewEventID(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
	}
}
