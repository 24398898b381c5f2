package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns the hex-encoded SHA-256 of the refresh token.
// Sessions store this hash and the blocklist keys on it; the raw token never
// touches the database.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenHashEqual reports whether the presented token hashes to
// storedHash, comparing in constant time.
func RefreshTokenHashEqual(presentedToken, storedHash string) bool {
	presented := HashRefreshToken(presentedToken)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
