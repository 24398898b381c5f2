package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/traylorre/sentiment-auth/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.SecurityEvent
	emitErr error
}

func (m *mockEventEmitter) Emit(_ context.Context, event *domain.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.SecurityEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := m.getEvents(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(m.getEvents()))
	return nil
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, context.Background(), &domain.SecurityEvent{EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	// Should not panic and should not emit
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(20 * time.Millisecond)
	if got := emitter.getEvents(); len(got) != 0 {
		t.Errorf("events = %d, want 0", len(got))
	}
}

func TestEmitAsync_DeliversEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, context.Background(), &domain.SecurityEvent{EventType: domain.EventSessionCreated})
	events := waitForEvents(t, emitter, 1)
	if events[0].EventType != domain.EventSessionCreated {
		t.Errorf("eventType = %q, want %q", events[0].EventType, domain.EventSessionCreated)
	}
}

func TestEmitAsync_EmitErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("sink down")}
	// Should not propagate anywhere; just logged.
	EmitAsync(emitter, context.Background(), &domain.SecurityEvent{EventType: "test"})
	waitForEvents(t, emitter, 1)
}
