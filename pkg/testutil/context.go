package testutil

import (
	"medvault/pkg/domain"
)

// VerifiedIdentity builds an active caller with a fresh actor id.
func VerifiedIdentity(role domain.Role) domain.Identity {
	return domain.Identity{
		ActorID:            domain.NewActorID(),
		Role:               role,
		VerificationStatus: domain.VerificationVerified,
	}
}

// PendingIdentity builds a caller that has registered but not been verified.
func PendingIdentity(role domain.Role) domain.Identity {
	return domain.Identity{
		ActorID:            domain.NewActorID(),
		Role:               role,
		VerificationStatus: domain.VerificationPending,
	}
}
