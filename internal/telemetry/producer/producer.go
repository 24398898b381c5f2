// Package producer publishes security events to the event topic.
package producer

import (
	"context"

	"github.com/traylorre/sentiment-auth/internal/telemetry/domain"
)

// Producer sends security events to the event bus. Emission is best-effort;
// a write failure is logged upstream and never propagates to the auth flow.
type Producer interface {
	// Emit may block briefly on the underlying writer; the async emit path
	// calls it off the request goroutine.
	Emit(ctx context.Context, event *domain.SecurityEvent) error
	// Close flushes and releases the writer. Idempotent.
	Close() error
}
