// Package handler exposes session inspection and revocation over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
	"github.com/traylorre/sentiment-auth/internal/session/repository"
)

// SessionHandler serves the /v1/sessions endpoints. All routes require a
// Bearer token; users can only see and revoke their own sessions.
type SessionHandler struct {
	repo repository.Repository
}

func NewSessionHandler(repo repository.Repository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// RegisterRoutes mounts the session endpoints on the router.
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("/v1/sessions", middleware.RequireAuth(http.HandlerFunc(h.list))).Methods(http.MethodGet)
	r.Handle("/v1/sessions/{id}", middleware.RequireAuth(http.HandlerFunc(h.revoke))).Methods(http.MethodDelete)
}

type sessionView struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type listResponse struct {
	Sessions []sessionView `json:"sessions"`
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	currentID, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.repo.ListActiveByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	out := listResponse{Sessions: make([]sessionView, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, toView(s, currentID))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *SessionHandler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id := mux.Vars(r)["id"]

	sess, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if sess == nil || sess.UserID != userID {
		// a foreign session id looks the same as a missing one
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "could not revoke session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toView(s *domain.Session, currentID string) sessionView {
	return sessionView{
		ID:        s.ID,
		IPAddress: s.IPAddress,
		Current:   s.ID == currentID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
