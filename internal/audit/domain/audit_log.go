package domain

import "time"

// AuditLog is one recorded auth action: who did what to which resource,
// from where. Metadata carries action-specific detail as a JSON string
// (e.g. the evicted session id on an eviction).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
