package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists notifications. The (event_id, recipient_id) unique
// constraint is the idempotency guarantee; the Redis mark in front of it is
// only a fast path.
//
// Schema:
//
//	CREATE TABLE notifications (
//	    id              UUID PRIMARY KEY,
//	    recipient_id    UUID NOT NULL,
//	    type            TEXT NOT NULL,
//	    priority        TEXT NOT NULL,
//	    event_id        UUID NOT NULL,
//	    action_required BOOLEAN NOT NULL DEFAULT FALSE,
//	    read            BOOLEAN NOT NULL DEFAULT FALSE,
//	    data            JSONB,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    UNIQUE (event_id, recipient_id)
//	);
//	CREATE INDEX notifications_recipient_idx ON notifications (recipient_id, read, created_at DESC);
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

func (s *PostgresStore) Create(ctx context.Context, notification domain.Notification) (bool, error) {
	var data []byte
	if notification.Data != nil {
		var err error
		data, err = json.Marshal(notification.Data)
		if err != nil {
			return false, fmt.Errorf("marshal notification data: %w", err)
		}
	}
	query := `
		INSERT INTO notifications (id, recipient_id, type, priority, event_id, action_required, read, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, recipient_id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(notification.ID), uuid.UUID(notification.RecipientID),
		string(notification.Type), string(notification.Priority), uuid.UUID(notification.EventID),
		notification.ActionRequired, notification.Read, data, notification.CreatedAt,
	)
	if err != nil {
		return false, wrapStoreErr("create notification", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("create notification", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipientID domain.ActorID, unreadOnly bool) ([]domain.Notification, error) {
	query := `
		SELECT id, recipient_id, type, priority, event_id, action_required, read, data, created_at
		FROM notifications
		WHERE recipient_id = $1
	`
	args := []any{uuid.UUID(recipientID)}
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("list notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n                     domain.Notification
			id, recipient, event  uuid.UUID
			typ, priority         string
			data                  []byte
		)
		err := rows.Scan(&id, &recipient, &typ, &priority, &event, &n.ActionRequired, &n.Read, &data, &n.CreatedAt)
		if err != nil {
			return nil, wrapStoreErr("scan notification", err)
		}
		n.ID = domain.NotificationID(id)
		n.RecipientID = domain.ActorID(recipient)
		n.Type = domain.NotificationType(typ)
		n.Priority = domain.NotificationPriority(priority)
		n.EventID = domain.EventID(event)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("unmarshal notification data: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRead(ctx context.Context, id domain.NotificationID, recipientID domain.ActorID) error {
	// The recipient filter makes this both the ownership check and the
	// update; a non-recipient learns nothing about the row's existence.
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		uuid.UUID(id), uuid.UUID(recipientID))
	if err != nil {
		return wrapStoreErr("mark notification read", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("mark notification read", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
