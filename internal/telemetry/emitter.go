package telemetry

import (
	"context"

	"github.com/traylorre/sentiment-auth/internal/telemetry/domain"
)

// EventEmitter is one sink for security events, such as the Kafka producer
// or the OTel log adapter. Emit errors are logged by the async path and never
// reach the auth flow that produced the event.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}
