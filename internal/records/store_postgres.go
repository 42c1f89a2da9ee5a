package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"medvault/internal/policy"
	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists records in PostgreSQL. This store is pure I/O; all
// transition rules live in the service.
//
// Schema:
//
//	CREATE TABLE records (
//	    id            UUID PRIMARY KEY,
//	    subject_id    UUID NOT NULL,
//	    clinician_id  UUID NOT NULL,
//	    entered_by    UUID NOT NULL,
//	    status        TEXT NOT NULL,
//	    has_active_correction BOOLEAN NOT NULL DEFAULT FALSE,
//	    fields        JSONB NOT NULL DEFAULT '{}',
//	    version       INTEGER NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, record domain.Record) error {
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}
	query := `
		INSERT INTO records (id, subject_id, clinician_id, entered_by, status, has_active_correction, fields, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID), uuid.UUID(record.SubjectID), uuid.UUID(record.ClinicianID),
		uuid.UUID(record.EnteredBy), string(record.Status), record.HasActiveCorrection,
		fields, record.Version, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return wrapStoreErr("create record", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.RecordID) (domain.Record, error) {
	query := `
		SELECT id, subject_id, clinician_id, entered_by, status, has_active_correction, fields, version, created_at, updated_at
		FROM records
		WHERE id = $1
	`
	record, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, sentinel.ErrNotFound
		}
		return domain.Record{}, wrapStoreErr("get record", err)
	}

	// Request order comes from the correction table, not a stored array;
	// concurrent appends to an embedded array are exactly what this schema
	// avoids.
	ids, err := s.correctionIDs(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	record.CorrectionRequestIDs = ids
	return record, nil
}

func (s *PostgresStore) correctionIDs(ctx context.Context, id domain.RecordID) ([]domain.CorrectionRequestID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id FROM correction_requests WHERE record_id = $1 ORDER BY created_at`, uuid.UUID(id))
	if err != nil {
		return nil, wrapStoreErr("list correction ids", err)
	}
	defer rows.Close()
	var ids []domain.CorrectionRequestID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, wrapStoreErr("scan correction id", err)
		}
		ids = append(ids, domain.CorrectionRequestID(u))
	}
	return ids, rows.Err()
}

// UpdateIfStatus performs the compare-and-set in a single statement: the row
// is written only when its status still matches the expected value.
func (s *PostgresStore) UpdateIfStatus(ctx context.Context, updated domain.Record, expected domain.RecordStatus) error {
	fields, err := json.Marshal(updated.Fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}
	query := `
		UPDATE records
		SET status = $1, has_active_correction = $2, fields = $3, version = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(updated.Status), updated.HasActiveCorrection, fields,
		updated.Version, updated.UpdatedAt, uuid.UUID(updated.ID), string(expected),
	)
	if err != nil {
		return wrapStoreErr("update record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("update record", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM records WHERE id = $1)`, uuid.UUID(updated.ID)).Scan(&exists)
		if err != nil {
			return wrapStoreErr("update record", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]domain.Record, error) {
	base := `
		SELECT id, subject_id, clinician_id, entered_by, status, has_active_correction, fields, version, created_at, updated_at
		FROM records
	`
	var rows *sql.Rows
	var err error
	switch filter.Scope {
	case policy.ScopeAll:
		rows, err = s.execer(ctx).QueryContext(ctx, base+` ORDER BY created_at`)
	case policy.ScopeSubject:
		rows, err = s.execer(ctx).QueryContext(ctx,
			base+` WHERE subject_id = $1 AND status = $2 ORDER BY created_at`,
			uuid.UUID(filter.ActorID), string(domain.RecordStatusVerified))
	case policy.ScopeClinician:
		rows, err = s.execer(ctx).QueryContext(ctx,
			base+` WHERE clinician_id = $1 ORDER BY created_at`, uuid.UUID(filter.ActorID))
	case policy.ScopeEnteredBy:
		rows, err = s.execer(ctx).QueryContext(ctx,
			base+` WHERE entered_by = $1 ORDER BY created_at`, uuid.UUID(filter.ActorID))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("list records", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, wrapStoreErr("scan record", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record                               domain.Record
		id, subjectID, clinicianID, entered  uuid.UUID
		status                               string
		fields                               []byte
	)
	err := row.Scan(&id, &subjectID, &clinicianID, &entered, &status,
		&record.HasActiveCorrection, &fields, &record.Version, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return domain.Record{}, err
	}
	record.ID = domain.RecordID(id)
	record.SubjectID = domain.ActorID(subjectID)
	record.ClinicianID = domain.ActorID(clinicianID)
	record.EnteredBy = domain.ActorID(entered)
	record.Status = domain.RecordStatus(status)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &record.Fields); err != nil {
			return domain.Record{}, fmt.Errorf("unmarshal record fields: %w", err)
		}
	}
	return record, nil
}

// wrapStoreErr keeps transport faults retryable for the service while
// preserving the cause for logs.
func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
