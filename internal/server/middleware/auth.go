package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/traylorre/sentiment-auth/internal/security"
)

const bearerPrefix = "bearer "

// Auth validates the Bearer (access) token from the Authorization header and
// sets user_id and session_id in the request context. Requests without a
// valid token pass through unauthenticated; handlers that require identity
// check the context and respond 401 themselves, so public routes and
// protected routes share one middleware.
func Auth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token != "" {
				if sessionID, userID, err := tokens.ValidateAccess(token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), userID, sessionID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP records the request's client IP in context for audit logging.
// X-Forwarded-For is trusted only for its first hop; otherwise RemoteAddr is used.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}

// RequireAuth responds 401 unless the auth middleware put an identity in context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserID(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid authorization"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func clientIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
