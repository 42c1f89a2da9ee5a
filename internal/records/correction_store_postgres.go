package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresCorrectionStore persists correction requests.
//
// Schema:
//
//	CREATE TABLE correction_requests (
//	    id            UUID PRIMARY KEY,
//	    record_id     UUID NOT NULL REFERENCES records (id),
//	    requested_by  UUID NOT NULL,
//	    reason        TEXT NOT NULL,
//	    requested_changes JSONB,
//	    status        TEXT NOT NULL,
//	    processed_by  UUID,
//	    response      TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX correction_requests_record_idx ON correction_requests (record_id, created_at);
type PostgresCorrectionStore struct {
	db *sql.DB
}

func NewPostgresCorrections(db *sql.DB) *PostgresCorrectionStore {
	return &PostgresCorrectionStore{db: db}
}

func (s *PostgresCorrectionStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresCorrectionStore) Create(ctx context.Context, request domain.CorrectionRequest) error {
	changes, err := marshalChanges(request.RequestedChanges)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO correction_requests (id, record_id, requested_by, reason, requested_changes, status, processed_by, response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID), uuid.UUID(request.RecordID), uuid.UUID(request.RequestedBy),
		request.Reason, changes, string(request.Status), nullableActor(request.ProcessedBy),
		request.Response, request.CreatedAt, request.UpdatedAt,
	)
	if err != nil {
		return wrapStoreErr("create correction request", err)
	}
	return nil
}

func (s *PostgresCorrectionStore) Get(ctx context.Context, id domain.CorrectionRequestID) (domain.CorrectionRequest, error) {
	query := `
		SELECT id, record_id, requested_by, reason, requested_changes, status, processed_by, response, created_at, updated_at
		FROM correction_requests
		WHERE id = $1
	`
	request, err := scanCorrection(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CorrectionRequest{}, sentinel.ErrNotFound
		}
		return domain.CorrectionRequest{}, wrapStoreErr("get correction request", err)
	}
	return request, nil
}

func (s *PostgresCorrectionStore) Update(ctx context.Context, request domain.CorrectionRequest) error {
	changes, err := marshalChanges(request.RequestedChanges)
	if err != nil {
		return err
	}
	query := `
		UPDATE correction_requests
		SET reason = $1, requested_changes = $2, status = $3, processed_by = $4, response = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		request.Reason, changes, string(request.Status), nullableActor(request.ProcessedBy),
		request.Response, request.UpdatedAt, uuid.UUID(request.ID),
	)
	if err != nil {
		return wrapStoreErr("update correction request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("update correction request", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCorrectionStore) ListByRecord(ctx context.Context, recordID domain.RecordID) ([]domain.CorrectionRequest, error) {
	query := `
		SELECT id, record_id, requested_by, reason, requested_changes, status, processed_by, response, created_at, updated_at
		FROM correction_requests
		WHERE record_id = $1
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(recordID))
	if err != nil {
		return nil, wrapStoreErr("list correction requests", err)
	}
	defer rows.Close()

	var out []domain.CorrectionRequest
	for rows.Next() {
		request, err := scanCorrection(rows)
		if err != nil {
			return nil, wrapStoreErr("scan correction request", err)
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

func (s *PostgresCorrectionStore) CountPending(ctx context.Context, recordID domain.RecordID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM correction_requests WHERE record_id = $1 AND status = $2`,
		uuid.UUID(recordID), string(domain.CorrectionPending)).Scan(&count)
	if err != nil {
		return 0, wrapStoreErr("count pending corrections", err)
	}
	return count, nil
}

func scanCorrection(row rowScanner) (domain.CorrectionRequest, error) {
	var (
		request         domain.CorrectionRequest
		id, recordID, by uuid.UUID
		status          string
		changes         []byte
		processedBy     sql.Null[uuid.UUID]
	)
	err := row.Scan(&id, &recordID, &by, &request.Reason, &changes, &status,
		&processedBy, &request.Response, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return domain.CorrectionRequest{}, err
	}
	request.ID = domain.CorrectionRequestID(id)
	request.RecordID = domain.RecordID(recordID)
	request.RequestedBy = domain.ActorID(by)
	request.Status = domain.CorrectionStatus(status)
	if processedBy.Valid {
		request.ProcessedBy = domain.ActorID(processedBy.V)
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &request.RequestedChanges); err != nil {
			return domain.CorrectionRequest{}, fmt.Errorf("unmarshal requested changes: %w", err)
		}
	}
	return request, nil
}

func marshalChanges(changes domain.FieldPatch) ([]byte, error) {
	if changes == nil {
		return nil, nil
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal requested changes: %w", err)
	}
	return b, nil
}

func nullableActor(id domain.ActorID) any {
	if id.IsNil() {
		return nil
	}
	return uuid.UUID(id)
}
