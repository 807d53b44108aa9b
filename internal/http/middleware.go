package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gigbridge/internal/clients"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration", duration.String())
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const clientContextKey contextKey = "client"

// clientHeader carries the client id for native apps; browsers use the cookie.
const clientHeader = "X-Client-ID"

// ClientFromContext extracts the calling client instance from the request context.
// Returns nil if the client middleware hasn't populated the context.
func ClientFromContext(ctx context.Context) *clients.Client {
	client, _ := ctx.Value(clientContextKey).(*clients.Client)
	return client
}

type clientRegistry interface {
	Open() *clients.Client
	Resume(ctx context.Context, id string) (*clients.Client, error)
	Close(id string) bool
}

func clientIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(clientCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func newClientMiddleware(registry clientRegistry, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientIDFromRequest(r)
			if id == "" {
				unknownClient(w)
				return
			}

			client, err := registry.Resume(r.Context(), id)
			if err != nil {
				if !errors.Is(err, clients.ErrUnknownClient) {
					logger.Error("resume client failed", "client_id", id, "error", err)
					writeRecoverableError(w, http.StatusServiceUnavailable, "client state unavailable", recoveryRetry)
					return
				}
				unknownClient(w)
				return
			}

			ctx := context.WithValue(r.Context(), clientContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unknownClient(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unknown client; open a new client first")
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
