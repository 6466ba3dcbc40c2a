package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// recoveryMiddleware catches panics and returns 500.
func recoveryMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Str("panic", fmt.Sprintf("%v", rec)).
						Str("path", r.URL.Path).
						Msg("Panic recovered in HTTP handler")
					WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware adds CORS headers and answers preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Correlation-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets baseline browser protections on every response.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// suspiciousPathPatterns are probes from scanners and bots. Matching requests
// are rejected before any routing and recorded in the security log. Only the
// request path is scanned; target_url query values are legitimate arbitrary
// URLs and must never trip this.
var suspiciousPathPatterns = []string{
	".php",
	".asp",
	".env",
	".git",
	"wp-admin",
	"wp-login",
	"phpmyadmin",
	"xmlrpc",
	"/etc/passwd",
	"<script",
}

// securityScanMiddleware rejects scanner probes with 403 and logs them
// fire-and-forget to the security log.
func securityScanMiddleware(logs interfaces.LogStore, logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := strings.ToLower(r.URL.Path)
			for _, pattern := range suspiciousPathPatterns {
				if !strings.Contains(path, pattern) {
					continue
				}

				entry := &models.SecurityLogEntry{
					Timestamp: time.Now(),
					ClientID:  clientID(r),
					Method:    r.Method,
					URL:       r.URL.String(),
					Pattern:   pattern,
					UserAgent: r.UserAgent(),
				}
				go func() {
					if err := logs.AppendSecurity(context.Background(), entry); err != nil {
						logger.Warn().Err(err).Msg("Security log write failed")
					}
				}()

				logger.Warn().
					Str("client", entry.ClientID).
					Str("path", r.URL.Path).
					Str("pattern", pattern).
					Msg("Suspicious request blocked")
				WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientID identifies a caller for rate limiting and security logging:
// remote IP plus a short hash of the user agent.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	sum := sha256.Sum256([]byte(r.UserAgent()))
	return ip + "_" + hex.EncodeToString(sum[:4])
}

// clientLimiters hands out one token bucket per client, refilling at
// perHour requests per hour. Idle entries are pruned opportunistically.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	perHour int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(perHour int) *clientLimiters {
	return &clientLimiters{
		clients: make(map[string]*clientEntry),
		perHour: perHour,
	}
}

func (c *clientLimiters) allow(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.clients[id]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Every(time.Hour/time.Duration(c.perHour)), c.perHour),
		}
		c.clients[id] = entry
	}
	entry.lastSeen = time.Now()

	if len(c.clients) > 10000 {
		c.prune()
	}
	return entry.limiter.Allow()
}

func (c *clientLimiters) prune() {
	cutoff := time.Now().Add(-2 * time.Hour)
	for id, entry := range c.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(c.clients, id)
		}
	}
}

// rateLimitMiddleware applies the per-client request budget.
func rateLimitMiddleware(perHour int, logger *common.Logger) func(http.Handler) http.Handler {
	limiters := newClientLimiters(perHour)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perHour <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			id := clientID(r)
			if !limiters.allow(id) {
				logger.Info().Str("client", id).Str("path", r.URL.Path).Msg("Rate limit exceeded")
				WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminExemptPaths need no admin credential: the login endpoint itself,
// liveness probes, the dashboard pages, and the proxy surface (which is
// authenticated by project, not by admin).
func adminExempt(path string) bool {
	switch path {
	case "/api/auth/login", "/api/health", "/api/version":
		return true
	}
	return !strings.HasPrefix(path, "/api/")
}

// adminAuthMiddleware protects the management API. A request passes with
// either the static admin token or a session JWT issued by the login
// endpoint, presented as a bearer credential.
func adminAuthMiddleware(config *common.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(config.Security.AdminToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			if err := validateSessionToken(token, config.Security.JWTSecret); err == nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", "Bearer")
			WriteError(w, http.StatusUnauthorized, "Invalid or expired credentials")
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return token, token != ""
}

// correlationIDMiddleware extracts or generates a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get("X-Request-ID")
		if corrID == "" {
			corrID = r.Header.Get("X-Correlation-ID")
		}
		if corrID == "" {
			corrID = uuid.New().String()[:8]
		}
		w.Header().Set("X-Correlation-ID", corrID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			dur := time.Since(start)
			corrID := w.Header().Get("X-Correlation-ID")

			event := logger.Trace()
			if rw.statusCode >= 500 {
				event = logger.Error()
			} else if rw.statusCode >= 400 {
				event = logger.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Int("bytes", rw.bytesWritten).
				Dur("duration", dur).
				Str("correlation_id", corrID).
				Msg("HTTP request")
		})
	}
}

// applyMiddleware wraps a handler with the middleware stack.
func applyMiddleware(handler http.Handler, logger *common.Logger, config *common.Config, logs interfaces.LogStore) http.Handler {
	// Apply in reverse order (last applied = first executed)
	handler = loggingMiddleware(logger)(handler)
	handler = correlationIDMiddleware(handler)
	handler = adminAuthMiddleware(config)(handler)
	handler = rateLimitMiddleware(config.Security.RateLimit, logger)(handler)
	handler = securityScanMiddleware(logs, logger)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = recoveryMiddleware(logger)(handler)
	return handler
}
