package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/traylorre/sentiment-auth/internal/telemetry/domain"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long the server waits after the HTTP listener
// stops before tearing down the OTel providers, giving in-flight emits time
// to land. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync fires Emit on its own goroutine so the request path never waits
// on a sink. Nil emitter or event is a no-op. The emit runs on a fresh
// context with emitTimeout; cancelling the request must not abort an emit
// already underway.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
