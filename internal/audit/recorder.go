package audit

import (
	"context"
	"log/slog"

	"medvault/internal/events"
)

// Recorder consumes transition events from the bus and appends them to the
// trail. Append failures are logged and the event is dropped; the trail is
// best-effort off the commit path, the transition itself already committed.
type Recorder struct {
	store  Store
	inbox  <-chan events.Event
	logger *slog.Logger
}

func NewRecorder(store Store, inbox <-chan events.Event, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, inbox: inbox, logger: logger}
}

// Run processes events until the context is cancelled or the inbox closes.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-r.inbox:
			if !ok {
				return nil
			}
			if err := r.store.Append(ctx, fromEvent(event)); err != nil {
				r.logger.ErrorContext(ctx, "audit append failed",
					"event_id", event.ID.String(),
					"kind", string(event.Kind),
					"error", err.Error(),
				)
			}
		}
	}
}

func fromEvent(event events.Event) Entry {
	entry := Entry{
		ID:        event.ID,
		Timestamp: event.OccurredAt,
		Action:    string(event.Kind),
		ActorID:   event.ActorID,
	}
	if event.Record != nil {
		entry.RecordID = event.Record.ID
		entry.RecordStatus = event.Record.Status
	}
	if event.Correction != nil {
		entry.CorrectionRequestID = event.Correction.ID
	}
	if event.Subject != nil {
		entry.SubjectActorID = event.Subject.ID
	}
	return entry
}
