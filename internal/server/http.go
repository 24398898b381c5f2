// Package server assembles the HTTP API: routes, middleware, CORS, and tracing.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authhandler "github.com/traylorre/sentiment-auth/internal/auth/handler"
	authservice "github.com/traylorre/sentiment-auth/internal/auth/service"
	healthhandler "github.com/traylorre/sentiment-auth/internal/health/handler"
	"github.com/traylorre/sentiment-auth/internal/security"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	sessionhandler "github.com/traylorre/sentiment-auth/internal/session/handler"
	sessionrepo "github.com/traylorre/sentiment-auth/internal/session/repository"
)

// Deps holds the services and repositories the HTTP server exposes.
type Deps struct {
	// Auth serves /v1/auth. Required.
	Auth *authservice.AuthService
	// SessionRepo serves /v1/sessions. If nil, session routes are not mounted.
	SessionRepo sessionrepo.Repository
	// Tokens validates Bearer tokens for protected routes. Required.
	Tokens *security.TokenProvider
	// HealthPinger is used by /healthz readiness (e.g. *sql.DB). May be nil.
	HealthPinger healthhandler.Pinger
	// CORSOrigins lists allowed origins for the dashboard frontend.
	// Empty means same-origin only.
	CORSOrigins []string
}

// Router builds the mux router with all routes and per-request middleware.
// Split out from New so tests can drive it with httptest.
func Router(deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.ClientIP)
	if deps.Tokens != nil {
		r.Use(middleware.Auth(deps.Tokens))
	}
	healthhandler.NewHandler(deps.HealthPinger).RegisterRoutes(r)
	if deps.Auth != nil {
		authhandler.NewAuthHandler(deps.Auth).RegisterRoutes(r)
	}
	if deps.SessionRepo != nil {
		sessionhandler.NewSessionHandler(deps.SessionRepo).RegisterRoutes(r)
	}
	return r
}

// New returns an http.Server serving the API on addr, wrapped with CORS and
// OTel HTTP instrumentation.
func New(addr string, deps Deps) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := otelhttp.NewHandler(c.Handler(Router(deps)), "sentiment-auth.http")
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
