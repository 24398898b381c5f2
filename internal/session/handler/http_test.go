package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
)

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	listErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: map[string]*domain.Session{}}
}

func (m *memRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) ListActiveByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Active(time.Now()) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memRepo) DeleteAllByUser(context.Context, string) error { return nil }

func (m *memRepo) UpdateRefreshToken(context.Context, string, string, string) error { return nil }

func (m *memRepo) EvictAndCreate(context.Context, string, *blocklistdomain.Entry, *domain.Session) error {
	return nil
}

func (m *memRepo) PurgeExpired(context.Context) (int64, error) { return 0, nil }

// identity injects a fixed user/session into the request context, standing in
// for the Bearer auth middleware.
func identity(userID, sessionID string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != "" {
				r = r.WithContext(middleware.WithIdentity(r.Context(), userID, sessionID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newRouter(repo *memRepo, userID, sessionID string) *mux.Router {
	r := mux.NewRouter()
	r.Use(identity(userID, sessionID))
	NewSessionHandler(repo).RegisterRoutes(r)
	return r
}

func seed(repo *memRepo, id, userID string) {
	repo.sessions[id] = &domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().Add(-time.Minute),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestList_ReturnsOwnSessions(t *testing.T) {
	repo := newMemRepo()
	seed(repo, "s-1", "user-1")
	seed(repo, "s-2", "user-1")
	seed(repo, "s-other", "user-2")
	r := newRouter(repo, "user-1", "s-1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Sessions []struct {
			ID      string `json:"id"`
			Current bool   `json:"current"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(out.Sessions))
	}
	for _, s := range out.Sessions {
		if s.ID == "s-other" {
			t.Error("foreign session should not be listed")
		}
		if s.Current != (s.ID == "s-1") {
			t.Errorf("session %s current = %v", s.ID, s.Current)
		}
	}
}

func TestList_RequiresAuth(t *testing.T) {
	r := newRouter(newMemRepo(), "", "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestList_RepoError(t *testing.T) {
	repo := newMemRepo()
	repo.listErr = errors.New("db down")
	r := newRouter(repo, "user-1", "s-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRevoke_OwnSession(t *testing.T) {
	repo := newMemRepo()
	seed(repo, "s-1", "user-1")
	seed(repo, "s-2", "user-1")
	r := newRouter(repo, "user-1", "s-1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-2", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, exists := repo.sessions["s-2"]; exists {
		t.Error("session should be deleted")
	}
}

func TestRevoke_ForeignSessionLooksMissing(t *testing.T) {
	repo := newMemRepo()
	seed(repo, "s-other", "user-2")
	r := newRouter(repo, "user-1", "s-1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if _, exists := repo.sessions["s-other"]; !exists {
		t.Error("foreign session must not be deleted")
	}
}

func TestRevoke_MissingSession(t *testing.T) {
	r := newRouter(newMemRepo(), "user-1", "s-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
