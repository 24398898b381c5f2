package repository

import (
	"context"
	"errors"

	"github.com/traylorre/sentiment-auth/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository persists user accounts. Lookups return (nil, nil) for a missing
// user so callers can distinguish absence from storage failure.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
