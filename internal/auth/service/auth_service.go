package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traylorre/sentiment-auth/internal/audit"
	"github.com/traylorre/sentiment-auth/internal/security"
	"github.com/traylorre/sentiment-auth/internal/server/middleware"
	sessiondomain "github.com/traylorre/sentiment-auth/internal/session/domain"
	userdomain "github.com/traylorre/sentiment-auth/internal/user/domain"
	userrepo "github.com/traylorre/sentiment-auth/internal/user/repository"
)

// Sentinel errors for auth service; handler maps them to HTTP status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
)

// ValidationError marks a request-validation failure; its message is safe to
// return to the client.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(msg string) error { return &ValidationError{msg: msg} }

// AuthResult holds the outcome of Register (user_id only), Login, Anonymous, or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	SessionID    string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRepo is the minimal session repository needed by the auth service.
// Session creation goes through Establisher, never straight to the repository.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
}

// Establisher inserts new sessions subject to the per-user cap.
type Establisher interface {
	Establish(ctx context.Context, s *sessiondomain.Session) error
}

// Gate decides whether a refresh token may be honored.
type Gate interface {
	Check(ctx context.Context, refreshToken string) error
}

// EventRecorder publishes security events for denied refreshes and reuse revocations.
type EventRecorder interface {
	RefreshDenied(ctx context.Context, userID, sessionID string)
	TokenReuseRevoked(ctx context.Context, userID string)
}

// AuthService implements register, password and anonymous login, refresh with
// rotation, and logout. Every session-creating path goes through the
// Establisher so the per-user session cap holds regardless of how the
// session originated.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	establisher Establisher
	gate        Gate
	events      EventRecorder
	auditor     audit.AuditLogger
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	refreshTTL  time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// events and auditor may be nil.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	establisher Establisher,
	gate Gate,
	events EventRecorder,
	auditor audit.AuditLogger,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		establisher: establisher,
		gate:        gate,
		events:      events,
		auditor:     auditor,
		hasher:      hasher,
		tokens:      tokens,
		refreshTTL:  refreshTTL,
	}
}

// Register creates a user with the given email and password.
// Returns AuthResult with UserID only; the caller must Login to get tokens.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.logAudit(ctx, user.ID, "register", "user", "")
	return &AuthResult{UserID: user.ID}, nil
}

// Login authenticates with email/password, establishes a session under the
// per-user cap, and returns tokens.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	result, err := s.establishSession(ctx, user.ID, ip)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "login", "session", "")
	return result, nil
}

// Anonymous creates an anonymous user and establishes its first session. The
// returned tokens work exactly like password-login tokens; the session is
// subject to the same cap.
func (s *AuthService) Anonymous(ctx context.Context, ip string) (*AuthResult, error) {
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Anonymous: true,
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	result, err := s.establishSession(ctx, user.ID, ip)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "anonymous_login", "session", "")
	return result, nil
}

// Refresh validates the refresh token, consults the blocklist gate, rotates
// the token, and returns new tokens. No token is issued before the gate
// allows the refresh; a gate denial surfaces as blocklist.ErrRefreshDenied.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.gate.Check(ctx, refreshToken); err != nil {
		if s.events != nil {
			s.events.RefreshDenied(ctx, userID, sessionID)
		}
		s.logAudit(ctx, userID, "refresh_denied", "session", "")
		return nil, err
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		// an older rotation of this session's token is being replayed
		_ = s.sessionRepo.DeleteAllByUser(ctx, userID)
		if s.events != nil {
			s.events.TokenReuseRevoked(ctx, userID)
		}
		s.logAudit(ctx, userID, "token_reuse_revoked", "session", "")
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateRefreshToken(ctx, sessionID, newJti, security.HashRefreshToken(newRefresh)); err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		UserID:       userID,
		SessionID:    sessionID,
	}, nil
}

// Logout deletes the session identified by the refresh token or by the access token in context.
// If refreshToken is non-empty, validates it and deletes that session.
// If refreshToken is empty and the auth middleware set session_id in context, deletes that session.
// Otherwise no-op. Logout is not governed by the cap: it only removes rows.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sessionID := ""
	userID := ""
	if refreshToken != "" {
		sid, _, uid, err := s.tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		sessionID, userID = sid, uid
	} else {
		sid, ok := middleware.GetSessionID(ctx)
		if !ok {
			return nil
		}
		sessionID = sid
		userID, _ = middleware.GetUserID(ctx)
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logAudit(ctx, userID, "logout", "session", "")
	return nil
}

func (s *AuthService) establishSession(ctx context.Context, userID, ip string) (*AuthResult, error) {
	sessionID := uuid.New().String()
	refreshToken, jti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           userID,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		IPAddress:        ip,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.establisher.Establish(ctx, sess); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       userID,
		SessionID:    sessionID,
	}, nil
}

func (s *AuthService) logAudit(ctx context.Context, userID, action, resource, metadata string) {
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, userID, action, resource, metadata)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return validationErrorf("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return validationErrorf("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return validationErrorf("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return validationErrorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return validationErrorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return validationErrorf("password must contain at least one number")
	}
	if !hasSymbol {
		return validationErrorf("password must contain at least one symbol")
	}
	return nil
}
