package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt for password storage. The plaintext lives only in the
// request that carried it; it is never logged or persisted.
type Hasher struct {
	Cost int
}

// NewHasher clamps cost to bcrypt's valid range. Zero or negative means the
// bcrypt default; tests pass a low cost to keep login fixtures fast.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash bcrypt-hashes the password for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare checks password against the stored hash. A mismatch returns
// bcrypt.ErrMismatchedHashAndPassword.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
