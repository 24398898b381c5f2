package repository

import (
	"context"

	"github.com/traylorre/sentiment-auth/internal/audit/domain"
)

// Repository persists audit records. ListByUser pages newest-first; audit
// rows are append-only and never updated.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
