// Package api exposes the assistant over HTTP: the learner-facing chat and
// recommendation routes plus an admin group for priority, stats, cache and
// provider probes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/internal/auth"
)

const ServiceName = "lms-assistant"

// NewRouter mounts every route. metrics, when non-nil, is served on /metrics.
func NewRouter(h *Handler, adminToken string, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequestID())
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"service":   ServiceName,
			"providers": len(h.svc.Providers()),
		})
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/recommendations", h.HandleRecommendations)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminToken(adminToken, h.logger))
			r.Get("/priority", h.HandleGetPriority)
			r.Put("/priority", h.HandleSetPriority)
			r.Get("/stats", h.HandleStats)
			r.Delete("/cache", h.HandleClearCache)
			r.Post("/providers/{id}/test", h.HandleTestProvider)
			r.Get("/history", h.HandleHistory)
		})
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", auth.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
