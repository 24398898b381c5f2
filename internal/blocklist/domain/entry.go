package domain

import "time"

// Entry revokes a single refresh token. The token hash is the primary key,
// so an entry can exist at most once; ExpiresAt mirrors the remaining
// lifetime of the revoked token, after which the row is purged.
type Entry struct {
	TokenHash string
	UserID    string
	EvictedAt time.Time
	ExpiresAt time.Time
}
