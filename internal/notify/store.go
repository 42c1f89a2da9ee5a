package notify

import (
	"context"

	"medvault/pkg/domain"
)

// Store persists notifications. Create is idempotent on
// (event id, recipient): re-delivering the same event to a recipient who
// already has its notification is a no-op, which makes broadcast retries safe.
type Store interface {
	// Create persists the notification unless one already exists for its
	// (EventID, RecipientID) pair. Returns false when deduplicated.
	Create(ctx context.Context, notification domain.Notification) (bool, error)
	// ListByRecipient returns the recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID domain.ActorID, unreadOnly bool) ([]domain.Notification, error)
	// MarkRead flips the read flag. The recipient id must match; anyone else
	// gets not-found, which does not confirm the notification exists.
	MarkRead(ctx context.Context, id domain.NotificationID, recipientID domain.ActorID) error
}
