package actors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists actors.
//
// Schema:
//
//	CREATE TABLE actors (
//	    id                  UUID PRIMARY KEY,
//	    name                TEXT NOT NULL,
//	    role                TEXT NOT NULL,
//	    verification_status TEXT NOT NULL,
//	    disabled            BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at          TIMESTAMPTZ NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL
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

func (s *PostgresStore) Create(ctx context.Context, actor domain.Actor) error {
	query := `
		INSERT INTO actors (id, name, role, verification_status, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(actor.ID), actor.Name, string(actor.Role), string(actor.VerificationStatus),
		actor.Disabled, actor.CreatedAt, actor.UpdatedAt,
	)
	if err != nil {
		return wrapStoreErr("create actor", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("create actor", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ActorID) (domain.Actor, error) {
	query := `
		SELECT id, name, role, verification_status, disabled, created_at, updated_at
		FROM actors
		WHERE id = $1
	`
	actor, err := scanActor(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Actor{}, sentinel.ErrNotFound
		}
		return domain.Actor{}, wrapStoreErr("get actor", err)
	}
	return actor, nil
}

func (s *PostgresStore) Update(ctx context.Context, actor domain.Actor) error {
	query := `
		UPDATE actors
		SET name = $1, verification_status = $2, disabled = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		actor.Name, string(actor.VerificationStatus), actor.Disabled, actor.UpdatedAt, uuid.UUID(actor.ID))
	if err != nil {
		return wrapStoreErr("update actor", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("update actor", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Actor, error) {
	query := `
		SELECT id, name, role, verification_status, disabled, created_at, updated_at
		FROM actors
		ORDER BY created_at
	`
	return s.queryActors(ctx, query)
}

func (s *PostgresStore) ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.VerificationStatus) ([]domain.Actor, error) {
	query := `
		SELECT id, name, role, verification_status, disabled, created_at, updated_at
		FROM actors
		WHERE role = $1 AND verification_status = $2 AND NOT disabled
		ORDER BY created_at
	`
	return s.queryActors(ctx, query, string(role), string(status))
}

func (s *PostgresStore) queryActors(ctx context.Context, query string, args ...any) ([]domain.Actor, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("list actors", err)
	}
	defer rows.Close()

	var out []domain.Actor
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, wrapStoreErr("scan actor", err)
		}
		out = append(out, actor)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActor(row rowScanner) (domain.Actor, error) {
	var (
		actor        domain.Actor
		id           uuid.UUID
		role, status string
	)
	err := row.Scan(&id, &actor.Name, &role, &status, &actor.Disabled, &actor.CreatedAt, &actor.UpdatedAt)
	if err != nil {
		return domain.Actor{}, err
	}
	actor.ID = domain.ActorID(id)
	actor.Role = domain.Role(role)
	actor.VerificationStatus = domain.VerificationStatus(status)
	return actor, nil
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
