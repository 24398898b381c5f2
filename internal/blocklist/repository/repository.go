package repository

import (
	"context"

	"github.com/traylorre/sentiment-auth/internal/blocklist/domain"
)

// Repository defines read and maintenance access to the token blocklist.
// Entries are written only inside the session eviction transaction, so this
// interface deliberately has no Create.
type Repository interface {
	// GetByTokenHash returns the entry for the hash, or nil if the token has
	// not been revoked. Expired entries are treated as absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Entry, error)
	// PurgeExpired removes entries whose expiry has passed and returns the
	// number of rows deleted.
	PurgeExpired(ctx context.Context) (int64, error)
}
