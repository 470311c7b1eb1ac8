package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/rollcall/internal/security"
	"github.com/go-chi/chi/v5/middleware"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison. Attempts are
// rate limited per client host before credentials are checked, and every
// outcome is recorded on audit.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, rl *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			event := security.AuditEvent{
				RemoteAddr: r.RemoteAddr,
				Method:     r.Method,
				Path:       r.URL.Path,
				RequestID:  middleware.GetReqID(r.Context()),
			}

			if err := rl.Allow(clientHost(r)); err != nil {
				event.Type = security.EventRateLimit
				event.Detail = err.Error()
				audit.Log(event)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			if method, ok := authenticate(cfg, r); ok {
				event.Type = security.EventAuthSuccess
				event.Detail = method
				audit.Log(event)
				next.ServeHTTP(w, r)
				return
			}

			event.Type = security.EventAuthFailure
			event.Detail = "invalid or missing credentials"
			audit.Log(event)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// authenticate reports which configured method, if any, accepted r.
func authenticate(cfg AuthConfig, r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}

	// Try Bearer token first.
	if cfg.BearerToken != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(after, cfg.BearerToken) {
			return "bearer", true
		}
	}

	if cfg.BasicUser != "" && cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
			return "basic", true
		}
	}
	return "", false
}

// clientHost strips the port from r.RemoteAddr.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
