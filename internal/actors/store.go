package actors

import (
	"context"

	"medvault/pkg/domain"
)

// Store persists actors. Implementations return sentinel errors; the service
// translates them.
type Store interface {
	Create(ctx context.Context, actor domain.Actor) error
	Get(ctx context.Context, id domain.ActorID) (domain.Actor, error)
	Update(ctx context.Context, actor domain.Actor) error
	List(ctx context.Context) ([]domain.Actor, error)
	// ListByRoleAndStatus backs administrator broadcast resolution, which must
	// reflect the current set at dispatch time.
	ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.VerificationStatus) ([]domain.Actor, error)
}
