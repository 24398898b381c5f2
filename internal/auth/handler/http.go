// Package handler exposes the auth service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/traylorre/sentiment-auth/internal/auth/service"
	"github.com/traylorre/sentiment-auth/internal/blocklist"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	sessionservice "github.com/traylorre/sentiment-auth/internal/session/service"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes mounts the auth endpoints on the router.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/anonymous", h.anonymous).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/logout", h.logout).Methods(http.MethodPost)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, registerResponse{UserID: res.UserID})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.GetClientIP(r.Context()))
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResult(res))
}

func (h *AuthHandler) anonymous(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Anonymous(r.Context(), middleware.GetClientIP(r.Context()))
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tokenResult(res))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResult(res))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.Body != nil {
		// body is optional; logout can rely on the Bearer token alone
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenResult(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		UserID:       res.UserID,
		SessionID:    res.SessionID,
	}
}

// unauthorizedMessage is the single body for every 401. A blocklisted,
// reused, malformed, or expired token must all read the same to the caller;
// distinct messages would leak whether a given token was ever valid.
const unauthorizedMessage = "invalid credentials"

// respondAuthError maps service sentinel errors to HTTP status codes.
func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenReuse),
		errors.Is(err, blocklist.ErrRefreshDenied):
		respondError(w, http.StatusUnauthorized, unauthorizedMessage)
	case errors.Is(err, sessionservice.ErrSessionNotEstablished):
		respondError(w, http.StatusServiceUnavailable, "could not establish session")
	default:
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
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
