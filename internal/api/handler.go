package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/internal/assistant"
	"github.com/vnmchuo/lms-assistant/internal/auth"
	"github.com/vnmchuo/lms-assistant/internal/fallback"
	"github.com/vnmchuo/lms-assistant/internal/history"
	"github.com/vnmchuo/lms-assistant/internal/priority"
	"github.com/vnmchuo/lms-assistant/internal/provider"
	"github.com/vnmchuo/lms-assistant/pkg/ratelimit"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	svc     *assistant.Service
	history history.Store
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewHandler wires the HTTP surface. history and limiter may be nil.
func NewHandler(svc *assistant.Service, hist history.Store, limiter *ratelimit.Limiter, tracer trace.Tracer, logger *zap.Logger) *Handler {
	return &Handler{
		svc:     svc,
		history: hist,
		limiter: limiter,
		tracer:  tracer,
		logger:  logger,
	}
}

type chatRequest struct {
	Message string             `json:"message"`
	Context json.RawMessage    `json:"context,omitempty"`
	Options *assistant.Options `json:"options,omitempty"`
}

type recommendRequest struct {
	Interests []string `json:"interests"`
	Level     string   `json:"level"`
}

type answerEnvelope struct {
	Success     bool      `json:"success"`
	Response    string    `json:"response"`
	Provider    string    `json:"provider"`
	Cached      bool      `json:"cached"`
	Fallback    bool      `json:"fallback"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if !h.allow(w, r) {
		return
	}

	ctx, span := h.tracer.Start(ctx, "api.chat")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", auth.GetRequestID(ctx)))

	res, err := h.svc.Respond(ctx, req.Message, contextText(req.Context), req.Options)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerEnvelope{
		Success:     true,
		Response:    res.Text,
		Provider:    res.Provider,
		Cached:      res.Cached,
		Fallback:    res.Fallback,
		Suggestions: fallback.Suggestions(req.Message),
		Timestamp:   time.Now().UTC(),
	})
}

func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.allow(w, r) {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.recommendations")
	defer span.End()

	res, err := h.svc.Recommend(ctx, req.Interests, req.Level)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerEnvelope{
		Success:   true,
		Response:  res.Text,
		Provider:  res.Provider,
		Cached:    res.Cached,
		Fallback:  res.Fallback,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) HandleGetPriority(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"priority":  h.svc.Priority(),
		"providers": h.svc.Providers(),
	})
}

func (h *Handler) HandleSetPriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority []string `json:"priority"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetPriority(req.Priority); err != nil {
		var invalid *priority.InvalidError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"priority": h.svc.Priority(),
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"stats":        h.svc.Stats(),
		"priority":     h.svc.Priority(),
		"cacheEnabled": h.svc.CacheEnabled(),
	})
}

func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearCache(r.Context())
	if err != nil {
		h.logger.Error("failed to clear cache", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cleared": n,
	})
}

func (h *Handler) HandleTestProvider(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "id"))

	var req struct {
		Prompt string `json:"prompt"`
	}
	if r.ContentLength > 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := h.svc.TestProvider(r.Context(), name, req.Prompt)
	if errors.Is(err, provider.ErrUnknownProvider) {
		writeError(w, http.StatusNotFound, "provider "+name+" is not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type historyItem struct {
	RequestID string    `json:"requestId"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	Cached    bool      `json:"cached"`
	Fallback  bool      `json:"fallback"`
	Attempts  int       `json:"attempts"`
	Tokens    int       `json:"tokens"`
	CostUSD   float64   `json:"costUsd"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "request history is not enabled")
		return
	}
	ctx := r.Context()

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid 'limit'")
			return
		}
		limit = n
	}

	now := time.Now()
	from := now.AddDate(0, 0, -7)
	to := now
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
		to = t
	}

	records, err := h.history.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	summary, err := h.history.Summary(ctx, from, to)
	if err != nil {
		h.logger.Error("failed to summarize history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	items := make([]historyItem, 0, len(records))
	for _, rec := range records {
		items = append(items, historyItem{
			RequestID: rec.RequestID,
			Provider:  rec.Provider,
			Model:     rec.Model,
			Cached:    rec.Cached,
			Fallback:  rec.Fallback,
			Attempts:  rec.Attempts,
			Tokens:    rec.Tokens,
			CostUSD:   rec.CostUSD,
			LatencyMs: rec.LatencyMs,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"recent":  items,
		"summary": summary,
		"from":    from,
		"to":      to,
	})
}

// allow applies the per-client limit. Limiter errors fail open so a Redis
// outage does not take the assistant down.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	clientID := auth.GetClientID(r.Context())
	ok, err := h.limiter.Allow(r.Context(), clientID)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(ratelimit.RetryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// contextText accepts either a JSON string or an arbitrary JSON value, which
// is passed to the model verbatim.
func contextText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return "Context: " + string(raw)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, assistant.ErrEmptyPrompt) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
