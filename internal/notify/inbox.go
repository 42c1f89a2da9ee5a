package notify

import (
	"context"
	"errors"

	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
)

// Inbox is the read side of notifications: recipients list their own
// messages and mark them read. Nothing here can mutate another actor's
// inbox.
type Inbox struct {
	store Store
}

func NewInbox(store Store) *Inbox {
	return &Inbox{store: store}
}

func (i *Inbox) List(ctx context.Context, caller domain.Identity, unreadOnly bool) ([]domain.Notification, error) {
	if !caller.Active() {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is not a verified actor")
	}
	list, err := i.store.ListByRecipient(ctx, caller.ActorID, unreadOnly)
	if err != nil {
		return nil, translateInboxErr(err)
	}
	return list, nil
}

func (i *Inbox) MarkRead(ctx context.Context, caller domain.Identity, id domain.NotificationID) error {
	if !caller.Active() {
		return dErrors.New(dErrors.CodeForbidden, "caller is not a verified actor")
	}
	if err := i.store.MarkRead(ctx, id, caller.ActorID); err != nil {
		return translateInboxErr(err)
	}
	return nil
}

func translateInboxErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "notification not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "notification store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "notification store failure")
	}
}
