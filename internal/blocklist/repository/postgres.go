package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/traylorre/sentiment-auth/internal/blocklist/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a blocklist repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByTokenHash returns the unexpired blocklist entry for the hash, or nil
// when the token is not revoked.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Entry, error) {
	var e domain.Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, evicted_at, expires_at
		 FROM token_blocklist
		 WHERE token_hash = $1 AND expires_at > now()`, tokenHash).
		Scan(&e.TokenHash, &e.UserID, &e.EvictedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// PurgeExpired deletes entries whose expiry has passed.
func (r *PostgresRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM token_blocklist WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Repository = (*PostgresRepository)(nil)
