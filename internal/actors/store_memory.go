package actors

import (
	"context"
	"sort"
	"sync"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	actors map[domain.ActorID]domain.Actor
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{actors: make(map[domain.ActorID]domain.Actor)}
}

func (s *InMemoryStore) Create(_ context.Context, actor domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[actor.ID]; ok {
		return sentinel.ErrConflict
	}
	s.actors[actor.ID] = actor
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ActorID) (domain.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if actor, ok := s.actors[id]; ok {
		return actor, nil
	}
	return domain.Actor{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, actor domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[actor.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.actors[actor.ID] = actor
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]domain.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Actor, 0, len(s.actors))
	for _, actor := range s.actors {
		out = append(out, actor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListByRoleAndStatus(_ context.Context, role domain.Role, status domain.VerificationStatus) ([]domain.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Actor
	for _, actor := range s.actors {
		if actor.Role == role && actor.VerificationStatus == status && !actor.Disabled {
			out = append(out, actor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
