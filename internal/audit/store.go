package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medvault/pkg/domain"
)

// Store is the append side of the trail: recorders write entries into the
// outbox.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// ListByRecord returns the trail for one record, oldest first. Backed by
	// the outbox in this service; consumers that need the full history read
	// the Kafka topic.
	ListByRecord(ctx context.Context, recordID domain.RecordID) ([]Entry, error)
}

// OutboxMessage is one row awaiting relay to the broker.
type OutboxMessage struct {
	ID        uuid.UUID
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxSource is the relay side: the relay drains unpublished rows in commit
// order and marks them once the broker acknowledges.
type OutboxSource interface {
	NextBatch(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
