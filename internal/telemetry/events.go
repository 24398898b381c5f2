package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sessiondomain "github.com/traylorre/sentiment-auth/internal/session/domain"
	"github.com/traylorre/sentiment-auth/internal/telemetry/domain"
)

// Recorder publishes session lifecycle and revocation events to one or more
// sinks (Kafka producer, OTel logs) and counts them on the global meter.
// Every method is fire-and-forget; a dead sink never affects the auth code
// path.
type Recorder struct {
	sinks  []EventEmitter
	source string
	events metric.Int64Counter
}

// NewRecorder returns a Recorder that fans events out to the given sinks.
// Nil sinks are skipped.
func NewRecorder(source string, sinks ...EventEmitter) *Recorder {
	var active []EventEmitter
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	counter, _ := otel.Meter("sentiment-auth/telemetry").Int64Counter(
		"auth.security_events",
		metric.WithDescription("Security events recorded, by event type."))
	return &Recorder{sinks: active, source: source, events: counter}
}

// SessionCreated records that a new session was established.
func (r *Recorder) SessionCreated(ctx context.Context, s *sessiondomain.Session) {
	r.record(ctx, &domain.SecurityEvent{
		EventType: domain.EventSessionCreated,
		UserID:    s.UserID,
		SessionID: s.ID,
	})
}

// SessionEvicted records that a session was displaced by the session cap.
func (r *Recorder) SessionEvicted(ctx context.Context, userID, sessionID string) {
	r.record(ctx, &domain.SecurityEvent{
		EventType: domain.EventSessionEvicted,
		UserID:    userID,
		SessionID: sessionID,
	})
}

// RefreshDenied records that a refresh token was rejected by the blocklist gate.
func (r *Recorder) RefreshDenied(ctx context.Context, userID, sessionID string) {
	r.record(ctx, &domain.SecurityEvent{
		EventType: domain.EventRefreshDenied,
		UserID:    userID,
		SessionID: sessionID,
	})
}

// TokenReuseRevoked records that refresh token reuse was detected and every
// session for the user was revoked.
func (r *Recorder) TokenReuseRevoked(ctx context.Context, userID string) {
	r.record(ctx, &domain.SecurityEvent{
		EventType: domain.EventTokenReuseRevoked,
		UserID:    userID,
	})
}

func (r *Recorder) record(ctx context.Context, event *domain.SecurityEvent) {
	if r == nil {
		return
	}
	event.Source = r.source
	event.CreatedAt = time.Now().UTC()
	if r.events != nil {
		r.events.Add(ctx, 1,
			metric.WithAttributes(attribute.String("event.type", event.EventType)))
	}
	for _, sink := range r.sinks {
		EmitAsync(sink, ctx, event)
	}
}
