package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/traylorre/sentiment-auth/internal/audit/domain"
	auditrepo "github.com/traylorre/sentiment-auth/internal/audit/repository"
)

// IPExtractor pulls the client IP out of the request context; the middleware
// package provides the usual implementation.
type IPExtractor func(context.Context) string

// AuditLogger records one auth action against a resource. Recording is
// best-effort: a failed write is logged and the calling flow continues.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger persists audit entries through the audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger builds a Logger. ipExtractor may be nil, in which case entries
// record "unknown" for the client IP.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit row. Failures are logged, never returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
