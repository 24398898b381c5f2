package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_jti, refresh_token_hash, ip_address, created_at, expires_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByUser returns the user's unexpired sessions ordered by creation
// time ascending, oldest first. Expired rows are filtered out here rather than
// eagerly deleted; the purge loop reclaims them.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND expires_at > now()
		 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts the session as a new row. A duplicate id maps to
// ErrDuplicateSession so callers can distinguish an id collision from an
// infrastructure failure.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.RefreshJti, s.RefreshTokenHash,
		nullIfEmpty(s.IPAddress), s.CreatedAt, s.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicateSession
	}
	return err
}

// Delete removes the session with the given id. Deleting a missing session is
// not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteAllByUser removes every session for the user. Used when refresh token
// reuse is detected and the whole user must be signed out.
func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// UpdateRefreshToken sets the session's current refresh token jti and hash for rotation.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`,
		sessionID, jti, refreshTokenHash)
	return err
}

// EvictAndCreate runs the three-way swap in a single transaction:
//
//  1. delete the oldest session; zero rows affected means a concurrent
//     writer got there first, and the whole transaction rolls back with
//     ErrEvictionConflict,
//  2. insert the evicted session's refresh token into the blocklist
//     (create-only; the token hash is the primary key),
//  3. insert the replacement session (create-only).
//
// Unique violations on either insert and serialization failures surface as
// ErrDuplicateSession / ErrEvictionConflict respectively, both of which the
// enforcer treats as retryable.
func (r *PostgresRepository) EvictAndCreate(ctx context.Context, oldestID string, entry *blocklistdomain.Entry, s *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin eviction tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, oldestID)
	if err != nil {
		return classifyTxErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEvictionConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_blocklist (token_hash, user_id, evicted_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		entry.TokenHash, entry.UserID, entry.EvictedAt, entry.ExpiresAt)
	if err != nil {
		return classifyTxErr(err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.RefreshJti, s.RefreshTokenHash,
		nullIfEmpty(s.IPAddress), s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return classifyTxErr(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyTxErr(err)
	}
	return nil
}

// PurgeExpired deletes sessions whose expiry has passed.
func (r *PostgresRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func classifyTxErr(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicateSession
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure {
		return ErrEvictionConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var ip sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshJti, &s.RefreshTokenHash,
		&ip, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s.IPAddress = ip.String
	return &s, nil
}

var _ Repository = (*PostgresRepository)(nil)
