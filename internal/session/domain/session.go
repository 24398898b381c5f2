package domain

import "time"

// Session represents an active authenticated session for a dashboard user.
// A session is live while ExpiresAt is in the future; expired rows are
// ignored by queries and removed by a periodic purge.
type Session struct {
	ID               string
	UserID           string
	RefreshJti       string // current refresh token jti for rotation
	RefreshTokenHash string // SHA-256 hash of the current refresh token
	IPAddress        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Active reports whether the session has not yet expired at the given time.
func (s *Session) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
