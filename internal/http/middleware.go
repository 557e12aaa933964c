package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	applog "tally/internal/log"
	"tally/internal/storage"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// with adds security headers, CORS, and request logging to a handler.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx)
		applog.HTTPStart(ctx, logger, r, requestID, clientIP)

		s.applyCORS(w, r)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		applog.HTTPEnd(ctx, logger, r, requestID, rw.statusCode, time.Since(start).Milliseconds())
	}
}

// applyCORS mirrors the request origin in development and restricts it
// to the configured frontend URL in production. Credentials are allowed
// so the browser client can send its bearer token.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := ""
	if s.development {
		allowed = origin
	} else if s.frontendURL != "" && origin == s.frontendURL {
		allowed = origin
	}
	if allowed == "" {
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", allowed)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Vary", "Origin")
}

// withCredentialRateLimit throttles login and register attempts per client IP.
func (s *Server) withCredentialRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
			return
		}
		next(w, r)
	}
}

// withSession requires a valid bearer token and resolves it to a user ID.
// Expired sessions are deleted on sight.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		session, err := s.sessions.GetSession(r.Context(), token)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.ErrorContext(r.Context(), "Session lookup failed", applog.FieldError, err)
			}
			writeError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}
		if session.Expired(time.Now()) {
			_ = s.sessions.DeleteSession(r.Context(), token)
			writeError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, session.UserID)
		next(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// userIDFrom returns the authenticated user's ID from the request context.
func userIDFrom(ctx context.Context) int64 {
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		return id
	}
	return 0
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
