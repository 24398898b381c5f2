package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
	"github.com/traylorre/sentiment-auth/internal/session/repository"
)

// ErrSessionNotEstablished is returned when every attempt to insert a session
// lost a race to a concurrent writer. The caller should surface it as a
// service failure; the user's credentials were fine.
var ErrSessionNotEstablished = errors.New("could not establish session")

// SessionStore is the minimal session repository needed by the enforcer.
type SessionStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	EvictAndCreate(ctx context.Context, oldestID string, entry *blocklistdomain.Entry, s *domain.Session) error
}

// Events receives notifications about session lifecycle changes. Emission is
// best-effort and must not block or fail session establishment.
type Events interface {
	SessionCreated(ctx context.Context, s *domain.Session)
	SessionEvicted(ctx context.Context, userID, sessionID string)
}

// defaultRetryDelay spaces out retries after a transient storage failure.
// Conflict retries skip the delay; a fresh read resolves those immediately.
const defaultRetryDelay = 50 * time.Millisecond

// Enforcer caps the number of live sessions per user. When a new session
// would exceed the cap, the user's oldest session is atomically replaced:
// deleted, its refresh token blocklisted, and the new session inserted, all
// in one transaction. Races with concurrent logins and transient storage
// failures are both resolved by re-reading the session list and retrying a
// bounded number of times.
type Enforcer struct {
	sessions    SessionStore
	events      Events
	limit       int
	maxAttempts int
	retryDelay  time.Duration
}

// NewEnforcer returns an Enforcer with the given session cap and retry
// budget. events may be nil.
func NewEnforcer(sessions SessionStore, events Events, limit, maxAttempts int) *Enforcer {
	if limit < 1 {
		limit = 5
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Enforcer{
		sessions:    sessions,
		events:      events,
		limit:       limit,
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// Establish inserts the session, evicting the user's oldest session first if
// the cap is reached. Each attempt starts from a fresh read of the session
// list, so a conflict caused by a concurrent login or logout selects a new
// eviction target on the next pass. Transient storage failures consume the
// same retry budget, spaced by a short delay. Exhausting the budget returns
// ErrSessionNotEstablished wrapping the last failure.
func (e *Enforcer) Establish(ctx context.Context, s *domain.Session) error {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 && !isConflict(lastErr) {
			if err := e.wait(ctx); err != nil {
				return err
			}
		}

		active, err := e.sessions.ListActiveByUser(ctx, s.UserID)
		if err != nil {
			lastErr = fmt.Errorf("list sessions: %w", err)
			continue
		}

		if len(active) < e.limit {
			if err := e.sessions.Create(ctx, s); err != nil {
				lastErr = err
				continue
			}
			e.emitCreated(ctx, s)
			return nil
		}

		oldest := active[0]
		entry := &blocklistdomain.Entry{
			TokenHash: oldest.RefreshTokenHash,
			UserID:    oldest.UserID,
			EvictedAt: time.Now().UTC(),
			ExpiresAt: oldest.ExpiresAt,
		}
		if err := e.sessions.EvictAndCreate(ctx, oldest.ID, entry, s); err != nil {
			lastErr = err
			continue
		}
		e.emitEvicted(ctx, oldest.UserID, oldest.ID)
		e.emitCreated(ctx, s)
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrSessionNotEstablished, e.maxAttempts, lastErr)
}

func isConflict(err error) bool {
	return errors.Is(err, repository.ErrEvictionConflict) || errors.Is(err, repository.ErrDuplicateSession)
}

func (e *Enforcer) wait(ctx context.Context) error {
	if e.retryDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Enforcer) emitCreated(ctx context.Context, s *domain.Session) {
	if e.events != nil {
		e.events.SessionCreated(ctx, s)
	}
}

func (e *Enforcer) emitEvicted(ctx context.Context, userID, sessionID string) {
	if e.events != nil {
		e.events.SessionEvicted(ctx, userID, sessionID)
	}
}
