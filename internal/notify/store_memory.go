package notify

import (
	"context"
	"sort"
	"sync"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

type dedupeKey struct {
	event     domain.EventID
	recipient domain.ActorID
}

type InMemoryStore struct {
	mu            sync.RWMutex
	notifications map[domain.NotificationID]domain.Notification
	byEvent       map[dedupeKey]domain.NotificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		notifications: make(map[domain.NotificationID]domain.Notification),
		byEvent:       make(map[dedupeKey]domain.NotificationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, notification domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupeKey{event: notification.EventID, recipient: notification.RecipientID}
	if _, ok := s.byEvent[key]; ok {
		return false, nil
	}
	s.notifications[notification.ID] = notification
	s.byEvent[key] = notification.ID
	return true, nil
}

func (s *InMemoryStore) ListByRecipient(_ context.Context, recipientID domain.ActorID, unreadOnly bool) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, id domain.NotificationID, recipientID domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return sentinel.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}
