// Server runs the auth HTTP API: login, refresh with blocklist gating, and
// session-cap enforcement. Requires DATABASE_URL and JWT keys; Kafka, OTLP,
// and Loki are optional sinks.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditlogger "github.com/traylorre/sentiment-auth/internal/audit"
	auditrepo "github.com/traylorre/sentiment-auth/internal/audit/repository"
	authservice "github.com/traylorre/sentiment-auth/internal/auth/service"
	"github.com/traylorre/sentiment-auth/internal/blocklist"
	blocklistrepo "github.com/traylorre/sentiment-auth/internal/blocklist/repository"
	"github.com/traylorre/sentiment-auth/internal/config"
	"github.com/traylorre/sentiment-auth/internal/db"
	"github.com/traylorre/sentiment-auth/internal/security"
	"github.com/traylorre/sentiment-auth/internal/server"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	sessionrepo "github.com/traylorre/sentiment-auth/internal/session/repository"
	sessionservice "github.com/traylorre/sentiment-auth/internal/session/service"
	"github.com/traylorre/sentiment-auth/internal/telemetry"
	telemetryotel "github.com/traylorre/sentiment-auth/internal/telemetry/otel"
	"github.com/traylorre/sentiment-auth/internal/telemetry/producer"
	userrepo "github.com/traylorre/sentiment-auth/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "sentiment-auth", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	privKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privKey, pubKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	sessions := sessionrepo.NewPostgresRepository(database)
	blocklistStore := blocklistrepo.NewPostgresRepository(database)
	users := userrepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)

	kafkaProducer, err := producer.NewKafkaProducer(cfg.EventsKafkaBrokersList(), cfg.EventsKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
	}
	var sinks []telemetry.EventEmitter
	if kafkaProducer != nil {
		sinks = append(sinks, kafkaProducer)
	}
	sinks = append(sinks, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	events := telemetry.NewRecorder("auth-server", sinks...)

	auditor := auditlogger.NewLogger(audits, middleware.GetClientIP)
	enforcer := sessionservice.NewEnforcer(sessions, events, cfg.SessionLimit, cfg.SessionEnforceRetries)
	gate := blocklist.NewGate(blocklistStore)
	hasher := security.NewHasher(cfg.BcryptCost)

	auth := authservice.NewAuthService(users, sessions, enforcer, gate, events, auditor, hasher, tokens, cfg.RefreshTTL())

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Auth:         auth,
		SessionRepo:  sessions,
		Tokens:       tokens,
		HealthPinger: database,
		CORSOrigins:  cfg.CORSOrigins(),
	})

	purgeCtx, stopPurge := context.WithCancel(ctx)
	go purgeLoop(purgeCtx, cfg.PurgeEvery(), sessions, blocklistStore)

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	stopPurge()

	// let in-flight async event emits drain before tearing down providers
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("http server stopped")
}

// purgeLoop periodically removes expired sessions and blocklist entries.
func purgeLoop(ctx context.Context, every time.Duration, sessions *sessionrepo.PostgresRepository, entries *blocklistrepo.PostgresRepository) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if n, err := sessions.PurgeExpired(purgeCtx); err != nil {
				log.Printf("purge sessions: %v", err)
			} else if n > 0 {
				log.Printf("purged %d expired sessions", n)
			}
			if n, err := entries.PurgeExpired(purgeCtx); err != nil {
				log.Printf("purge blocklist: %v", err)
			} else if n > 0 {
				log.Printf("purged %d expired blocklist entries", n)
			}
			cancel()
		}
	}
}
