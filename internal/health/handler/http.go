// Package handler serves readiness and liveness over HTTP for Kubernetes,
// load balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Pinger reports storage reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves GET /healthz. Liveness is unconditional; readiness pings the
// database when a Pinger is configured.
type Handler struct {
	pinger Pinger
}

// NewHandler returns a health handler. pinger may be nil; then readiness
// skips the DB ping.
func NewHandler(pinger Pinger) *Handler {
	return &Handler{pinger: pinger}
}

// RegisterRoutes mounts the health endpoint on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.DB = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.DB = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
