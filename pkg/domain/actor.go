package domain

import "time"

// Actor is one registered party. Actors are created at registration, mutated
// only by administrator verify/reject, and never deleted; Disabled soft-blocks
// a rejected or departed actor without losing the audit trail.
type Actor struct {
	ID                 ActorID            `json:"id"`
	Name               string             `json:"name"`
	Role               Role               `json:"role"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Disabled           bool               `json:"disabled"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Identity is the authenticated caller as supplied by the identity service on
// every request. The core trusts these fields and never re-derives them.
type Identity struct {
	ActorID            ActorID
	Role               Role
	VerificationStatus VerificationStatus
}

// Active reports whether the caller may exercise its role at all.
func (i Identity) Active() bool {
	return i.VerificationStatus == VerificationVerified
}
