package blocklist

import (
	"context"
	"errors"

	"github.com/traylorre/sentiment-auth/internal/blocklist/repository"
	"github.com/traylorre/sentiment-auth/internal/security"
)

// ErrRefreshDenied is returned whenever a refresh token must not be honored,
// whether because it was revoked or because revocation status could not be
// determined. Callers get no further detail.
var ErrRefreshDenied = errors.New("refresh denied")

// Gate checks refresh tokens against the blocklist before any token issuance.
// It fails closed: when the blocklist cannot be read, the refresh is denied
// rather than allowed through on a guess.
type Gate struct {
	repo repository.Repository
}

func NewGate(repo repository.Repository) *Gate {
	return &Gate{repo: repo}
}

// Check hashes the presented refresh token and consults the blocklist. It
// returns nil only when the blocklist was successfully read and contains no
// entry for the token. A storage failure and a revoked token produce the
// same ErrRefreshDenied so a caller cannot tell them apart.
func (g *Gate) Check(ctx context.Context, refreshToken string) error {
	entry, err := g.repo.GetByTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return ErrRefreshDenied
	}
	if entry != nil {
		return ErrRefreshDenied
	}
	return nil
}
