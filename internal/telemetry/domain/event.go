package domain

import "time"

// Event types published on the security event stream.
const (
	EventSessionCreated    = "session_created"
	EventSessionEvicted    = "session_evicted"
	EventRefreshDenied     = "refresh_denied"
	EventTokenReuseRevoked = "token_reuse_revoked"
)

// SecurityEvent is a single auth security event. The JSON shape is the wire
// format on the Kafka topic; the worker and dashboards consume it as-is.
type SecurityEvent struct {
	EventType string    `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Source    string    `json:"source,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
