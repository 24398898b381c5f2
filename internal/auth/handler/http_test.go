package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/traylorre/sentiment-auth/internal/auth/service"
	"github.com/traylorre/sentiment-auth/internal/blocklist"
	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/security"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	sessiondomain "github.com/traylorre/sentiment-auth/internal/session/domain"
	sessionrepo "github.com/traylorre/sentiment-auth/internal/session/repository"
	sessionservice "github.com/traylorre/sentiment-auth/internal/session/service"
	userdomain "github.com/traylorre/sentiment-auth/internal/user/domain"
)

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*userdomain.User
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUsers) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Email != "" {
		r.byEmail[u.Email] = u
	}
	return nil
}

type memSessions struct {
	mu        sync.Mutex
	sessions  map[string]*sessiondomain.Session
	blocklist map[string]*blocklistdomain.Entry
}

func (m *memSessions) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) ListActiveByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Active(time.Now()) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) Create(_ context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return sessionrepo.ErrDuplicateSession
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteAllByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessions) UpdateRefreshToken(_ context.Context, sessionID, jti, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.RefreshJti = jti
		s.RefreshTokenHash = hash
	}
	return nil
}

func (m *memSessions) EvictAndCreate(_ context.Context, oldestID string, entry *blocklistdomain.Entry, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[oldestID]; !exists {
		return sessionrepo.ErrEvictionConflict
	}
	delete(m.sessions, oldestID)
	ec := *entry
	m.blocklist[entry.TokenHash] = &ec
	sc := *s
	m.sessions[s.ID] = &sc
	return nil
}

func (m *memSessions) GetByTokenHash(_ context.Context, tokenHash string) (*blocklistdomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.blocklist[tokenHash]
	if !ok || !e.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memSessions) PurgeExpired(context.Context) (int64, error) { return 0, nil }

func newTestServer(t *testing.T) (*mux.Router, *memSessions) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := &memUsers{byEmail: map[string]*userdomain.User{}}
	store := &memSessions{
		sessions:  map[string]*sessiondomain.Session{},
		blocklist: map[string]*blocklistdomain.Entry{},
	}
	enforcer := sessionservice.NewEnforcer(store, nil, 5, 3)
	gate := blocklist.NewGate(store)
	svc := service.NewAuthService(users, store, enforcer, gate, nil, nil,
		security.NewHasher(4), tokens, 24*time.Hour)

	r := mux.NewRouter()
	r.Use(middleware.ClientIP)
	r.Use(middleware.Auth(tokens))
	NewAuthHandler(svc).RegisterRoutes(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const testPassword = "Sup3r-secret-pass!"

func registerAndLogin(t *testing.T, r http.Handler, email string) map[string]string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register",
		map[string]string{"email": email, "password": testPassword}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodPost, "/v1/auth/login",
		map[string]string{"email": email, "password": testPassword}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out
}

func TestRegister_HTTP(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register",
		map[string]string{"email": "a@example.com", "password": testPassword}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["userId"] == "" {
		t.Error("userId should be set")
	}

	// same email again
	rec = doJSON(t, r, http.MethodPost, "/v1/auth/register",
		map[string]string{"email": "a@example.com", "password": testPassword}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}
}

func TestRegister_HTTP_BadRequests(t *testing.T) {
	r, _ := newTestServer(t)
	testCases := []struct {
		name string
		body any
	}{
		{"weak password", map[string]string{"email": "b@example.com", "password": "weak"}},
		{"bad email", map[string]string{"email": "nope", "password": testPassword}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, "/v1/auth/register", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogin_HTTP_WrongPassword(t *testing.T) {
	r, _ := newTestServer(t)
	registerAndLogin(t, r, "c@example.com")

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/login",
		map[string]string{"email": "c@example.com", "password": "Wrong-pass-123!"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAnonymous_HTTP(t *testing.T) {
	r, _ := newTestServer(t)
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/anonymous", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["accessToken"] == "" || out["refreshToken"] == "" {
		t.Error("tokens should be issued")
	}
}

func TestRefresh_HTTP_RotatesAndDeniesEvicted(t *testing.T) {
	r, store := newTestServer(t)
	login := registerAndLogin(t, r, "d@example.com")

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refreshToken": login["refreshToken"]}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}

	// evicted tokens are refused with 401
	store.mu.Lock()
	sess := store.sessions[login["sessionId"]]
	store.blocklist[sess.RefreshTokenHash] = &blocklistdomain.Entry{
		TokenHash: sess.RefreshTokenHash,
		UserID:    sess.UserID,
		EvictedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	store.mu.Unlock()

	var rotated map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec = doJSON(t, r, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refreshToken": rotated["refreshToken"]}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh with blocklisted token status = %d, want 401", rec.Code)
	}
}

func TestRefresh_HTTP_UniformUnauthorizedBody(t *testing.T) {
	r, store := newTestServer(t)
	login := registerAndLogin(t, r, "f@example.com")

	// blocklist the still-valid token, as an eviction would
	store.mu.Lock()
	sess := store.sessions[login["sessionId"]]
	store.blocklist[sess.RefreshTokenHash] = &blocklistdomain.Entry{
		TokenHash: sess.RefreshTokenHash,
		UserID:    sess.UserID,
		EvictedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	store.mu.Unlock()

	denied := doJSON(t, r, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refreshToken": login["refreshToken"]}, nil)
	garbage := doJSON(t, r, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refreshToken": "not-a-jwt"}, nil)

	if denied.Code != http.StatusUnauthorized || garbage.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401, 401", denied.Code, garbage.Code)
	}
	// a blocklisted token must be indistinguishable from a garbage one
	if denied.Body.String() != garbage.Body.String() {
		t.Errorf("401 bodies differ: %q vs %q", denied.Body.String(), garbage.Body.String())
	}
}

func TestSixthLogin_HTTP_CapHolds(t *testing.T) {
	r, store := newTestServer(t)
	email := "cap@example.com"
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register",
		map[string]string{"email": email, "password": testPassword}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	for i := 0; i < 6; i++ {
		rec := doJSON(t, r, http.MethodPost, "/v1/auth/login",
			map[string]string{"email": email, "password": testPassword}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("login %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.sessions) != 5 {
		t.Errorf("sessions = %d, want 5", len(store.sessions))
	}
	if len(store.blocklist) != 1 {
		t.Errorf("blocklist entries = %d, want 1", len(store.blocklist))
	}
}

func TestLogout_HTTP_WithBearer(t *testing.T) {
	r, store := newTestServer(t)
	login := registerAndLogin(t, r, "e@example.com")

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/logout", nil,
		map[string]string{"Authorization": "Bearer " + login["accessToken"]})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}
	store.mu.Lock()
	_, exists := store.sessions[login["sessionId"]]
	store.mu.Unlock()
	if exists {
		t.Error("session should be deleted after logout")
	}
}

func TestRefresh_HTTP_MalformedBody(t *testing.T) {
	r, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
