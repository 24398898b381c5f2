package repository

import (
	"context"
	"errors"

	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
)

// ErrDuplicateSession is returned by Create and EvictAndCreate when a session
// with the same id already exists. It signals a retryable id collision, not an
// infrastructure failure.
var ErrDuplicateSession = errors.New("session already exists")

// ErrEvictionConflict is returned by EvictAndCreate when the eviction target
// was deleted by a concurrent writer before the transaction committed. The
// caller should re-query and retry.
var ErrEvictionConflict = errors.New("eviction target no longer exists")

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActiveByUser returns the user's unexpired sessions ordered oldest
	// first, so index 0 is always the eviction candidate.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// Create inserts the session. It fails with ErrDuplicateSession if the id
	// is already taken; it never overwrites an existing row.
	Create(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	// EvictAndCreate atomically deletes the session oldestID, blocklists its
	// refresh token, and inserts the new session. Either all three happen or
	// none do. ErrEvictionConflict means the target vanished underneath us;
	// ErrDuplicateSession means the new id or blocklist hash already exists.
	EvictAndCreate(ctx context.Context, oldestID string, entry *blocklistdomain.Entry, s *domain.Session) error
	// PurgeExpired removes sessions whose expiry has passed and returns the
	// number of rows deleted.
	PurgeExpired(ctx context.Context) (int64, error)
}
