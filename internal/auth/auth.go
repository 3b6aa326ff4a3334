package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIDKey  contextKey = "client_id"
)

const (
	RequestIDHeader = "X-Request-ID"
	ClientIDHeader  = "X-Client-ID"
)

// RequestID tags every request with an id (reusing an inbound X-Request-ID)
// and a client id used for rate limiting.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			clientID := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if clientID == "" {
				clientID = clientIP(r)
			}
			ctx = context.WithValue(ctx, clientIDKey, clientID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminToken guards admin routes with a static bearer token. An empty token
// leaves the routes open.
func AdminToken(token string, logger *zap.Logger) Middleware {
	want := sha256.Sum256([]byte(token))
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				deny(w)
				return
			}
			got := sha256.Sum256([]byte(strings.TrimPrefix(authHeader, "Bearer ")))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logger.Warn("admin token rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path))
				deny(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "unauthorized"})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// Helpers to extract from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}
