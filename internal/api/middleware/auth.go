package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/redis"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
)

type contextKey string

const (
	SessionIDKey    contextKey = "sessionID"
	ConnectionIDKey contextKey = "connectionID"
)

// SessionAuthMiddleware validates session tokens
type SessionAuthMiddleware struct {
	tokens *security.TokenManager
}

// NewSessionAuthMiddleware creates a new session auth middleware
func NewSessionAuthMiddleware(tokens *security.TokenManager) *SessionAuthMiddleware {
	return &SessionAuthMiddleware{tokens: tokens}
}

// RequireSession validates the bearer token and pins it to the session in
// the URL. A token minted for one session cannot act on another.
func (m *SessionAuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.ValidateSessionToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		if sessionIDStr := chi.URLParam(r, "sessionID"); sessionIDStr != "" {
			sessionID, err := uuid.Parse(sessionIDStr)
			if err != nil {
				response.BadRequest(w, "invalid session ID")
				return
			}
			if sessionID != claims.SessionID {
				response.Forbidden(w, "token is not valid for this session")
				return
			}
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, claims.SessionID)
		ctx = context.WithValue(ctx, ConnectionIDKey, claims.ConnectionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID gets the authenticated session ID from context
func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return sessionID, ok
}

// GetConnectionID gets the token's connection ID from context
func GetConnectionID(ctx context.Context) (uuid.UUID, bool) {
	connectionID, ok := ctx.Value(ConnectionIDKey).(uuid.UUID)
	return connectionID, ok
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter *redis.RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting keyed by session when one is authenticated,
// otherwise by client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if sessionID, ok := GetSessionID(r.Context()); ok {
			key = sessionID.String()
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), key)
		if err != nil {
			// Redis trouble must not take the API down with it
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.Format(time.RFC3339))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
