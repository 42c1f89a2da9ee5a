package actors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"medvault/internal/events"
	"medvault/internal/platform/metrics"
	"medvault/internal/policy"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
)

// Publisher decouples the service from the bus implementation for tests.
type Publisher interface {
	Publish(event events.Event)
}

// Service manages actor registration and administrator verification. Actors
// are never deleted; a rejected or departed actor is soft-disabled so the ids
// referenced by historical records stay resolvable.
type Service struct {
	store   Store
	bus     Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, bus Publisher, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, bus: bus, logger: logger, metrics: m}
}

// Register records the calling actor in pending status. The identity service
// has already issued the id and role; registration makes the actor visible to
// administrators for verification.
func (s *Service) Register(ctx context.Context, caller domain.Identity, name string) (domain.Actor, error) {
	if name == "" {
		return domain.Actor{}, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}

	now := time.Now().UTC()
	actor := domain.Actor{
		ID:                 caller.ActorID,
		Name:               name,
		Role:               caller.Role,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, actor); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.Actor{}, dErrors.New(dErrors.CodeConflict, "actor is already registered")
		}
		return domain.Actor{}, s.translate(err)
	}

	event := events.New(events.KindActorRegistered, caller.ActorID)
	subject := actor
	event.Subject = &subject
	s.bus.Publish(event)

	if s.metrics != nil {
		s.metrics.ActorsRegistered.Inc()
	}
	return actor, nil
}

// VerifyActor marks a pending actor verified. Administrators only.
func (s *Service) VerifyActor(ctx context.Context, caller domain.Identity, actorID domain.ActorID) (domain.Actor, error) {
	return s.review(ctx, caller, actorID, domain.VerificationVerified, events.KindActorVerified)
}

// RejectActor marks a pending actor rejected and disables it.
func (s *Service) RejectActor(ctx context.Context, caller domain.Identity, actorID domain.ActorID) (domain.Actor, error) {
	return s.review(ctx, caller, actorID, domain.VerificationRejected, events.KindActorRejected)
}

func (s *Service) review(ctx context.Context, caller domain.Identity, actorID domain.ActorID, status domain.VerificationStatus, kind events.Kind) (domain.Actor, error) {
	if err := policy.Authorize(caller, policy.ActionManageActors, policy.Ownership{}); err != nil {
		return domain.Actor{}, err
	}

	actor, err := s.store.Get(ctx, actorID)
	if err != nil {
		return domain.Actor{}, s.translate(err)
	}
	if actor.VerificationStatus == status {
		// Idempotent: re-reviewing to the same status is a no-op, no event.
		return actor, nil
	}

	actor.VerificationStatus = status
	actor.Disabled = status == domain.VerificationRejected
	actor.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, actor); err != nil {
		return domain.Actor{}, s.translate(err)
	}

	event := events.New(kind, caller.ActorID)
	subject := actor
	event.Subject = &subject
	s.bus.Publish(event)

	return actor, nil
}

// List returns all actors. Administrators only.
func (s *Service) List(ctx context.Context, caller domain.Identity) ([]domain.Actor, error) {
	if err := policy.Authorize(caller, policy.ActionManageActors, policy.Ownership{}); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, s.translate(err)
	}
	return out, nil
}

// GetActor resolves an actor reference without a policy check. It backs the
// record service's assignment validation, not a caller-facing read.
func (s *Service) GetActor(ctx context.Context, id domain.ActorID) (domain.Actor, error) {
	return s.store.Get(ctx, id)
}

// VerifiedAdministrators resolves the current broadcast set for the
// dispatcher. Resolved fresh on every call, never cached.
func (s *Service) VerifiedAdministrators(ctx context.Context) ([]domain.Actor, error) {
	return s.store.ListByRoleAndStatus(ctx, domain.RoleAdministrator, domain.VerificationVerified)
}

func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "actor not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage temporarily unavailable, try again later")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal storage failure")
	}
}
