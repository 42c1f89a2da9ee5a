package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"
)

// PostgresStore implements the trail with the transactional outbox pattern.
// Entries land in the outbox table; the relay publishes them to Kafka and
// marks them published.
//
// Schema:
//
//	CREATE TABLE audit_outbox (
//	    id           UUID PRIMARY KEY,
//	    event_id     UUID NOT NULL,
//	    key          TEXT NOT NULL,
//	    action       TEXT NOT NULL,
//	    actor_id     UUID NOT NULL,
//	    record_id    UUID,
//	    payload      JSONB NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ
//	);
//	CREATE INDEX audit_outbox_pending_idx ON audit_outbox (created_at) WHERE published_at IS NULL;
//	CREATE INDEX audit_outbox_record_idx ON audit_outbox (record_id, created_at);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	payloadBytes, err := json.Marshal(entryPayload(entry))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	var recordID *uuid.UUID
	if !entry.RecordID.IsNil() {
		rid := uuid.UUID(entry.RecordID)
		recordID = &rid
	}
	query := `
		INSERT INTO audit_outbox (id, event_id, key, action, actor_id, record_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), uuid.UUID(entry.ID), outboxKey(entry), entry.Action,
		uuid.UUID(entry.ActorID), recordID, payloadBytes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit outbox entry: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID domain.RecordID) ([]Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT payload FROM audit_outbox WHERE record_id = $1 ORDER BY created_at`,
		uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry, err := entryFromPayload(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextBatch(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, key, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.Key, &msg.Payload, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func entryFromPayload(raw []byte) (Entry, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Entry{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	entry := Entry{Action: p.Action}
	if id, err := domain.ParseEventID(p.ID); err == nil {
		entry.ID = id
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		entry.Timestamp = ts
	}
	if id, err := domain.ParseActorID(p.ActorID); err == nil {
		entry.ActorID = id
	}
	if p.RecordID != "" {
		if id, err := domain.ParseRecordID(p.RecordID); err == nil {
			entry.RecordID = id
		}
		entry.RecordStatus = domain.RecordStatus(p.RecordStatus)
	}
	if p.CorrectionRequestID != "" {
		if id, err := domain.ParseCorrectionRequestID(p.CorrectionRequestID); err == nil {
			entry.CorrectionRequestID = id
		}
	}
	if p.SubjectActorID != "" {
		if id, err := domain.ParseActorID(p.SubjectActorID); err == nil {
			entry.SubjectActorID = id
		}
	}
	return entry, nil
}
