package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/internal/auth"
	"github.com/vnmchuo/lms-assistant/internal/cache"
	"github.com/vnmchuo/lms-assistant/internal/history"
	"github.com/vnmchuo/lms-assistant/internal/provider"
	"github.com/vnmchuo/lms-assistant/internal/stats"
)

// Result describes how a request was answered.
type Result struct {
	Text     string
	Provider string // provider id, or SourceFallback
	Model    string
	Cached   bool
	Fallback bool
	Attempts int
	Latency  time.Duration
}

// cachedAnswer is the value stored in the cache.
type cachedAnswer struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

var errSkipped = errors.New("provider skipped")

// Respond runs the cache check, the provider trial loop and, if every
// provider fails, the fallback responder. Provider failures are never
// returned; the only error is ErrEmptyPrompt.
func (s *Service) Respond(ctx context.Context, prompt, system string, opts *Options) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if strings.TrimSpace(system) == "" {
		system = s.settings.SystemPrompt
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "assistant.respond")
	defer span.End()

	s.stats.RecordRequest()
	o := s.resolve(opts)
	order, pinned := s.trialOrder(o.Provider)
	if !pinned {
		// a model name only makes sense for the provider that owns it
		o.Model = ""
	}

	var key string
	if s.cache != nil {
		key = cache.Key(prompt, system, o)
		if res, ok := s.lookup(ctx, key); ok {
			s.stats.RecordCacheHit()
			if res.Fallback {
				s.stats.RecordFallback()
			} else {
				s.stats.RecordAnswered()
			}
			res.Latency = time.Since(start)
			span.SetAttributes(attribute.Bool("cache_hit", true))
			s.logHistory(ctx, res, nil)
			return res, nil
		}
		s.stats.RecordCacheMiss()
	}

	req := &provider.Request{
		Model:       o.Model,
		Messages:    provider.BuildMessages(prompt, system),
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	}

	attempts := 0
	for _, name := range order {
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		if s.quotaOpen(name) {
			s.logger.Debug("provider skipped, quota breaker open", zap.String("provider", name))
			continue
		}
		if attempts > 0 {
			if err := s.sleep(ctx, s.settings.Backoff); err != nil {
				break
			}
		}

		resp, err := s.attempt(ctx, p, req)
		if errors.Is(err, errSkipped) {
			continue
		}
		attempts++

		if err == nil {
			res := &Result{
				Text:     resp.Content,
				Provider: name,
				Model:    resp.Model,
				Attempts: attempts,
				Latency:  time.Since(start),
			}
			s.stats.RecordAnswered()
			s.store(ctx, key, res, s.settings.CacheTTL)
			span.SetAttributes(attribute.String("provider", name), attribute.Int("attempts", attempts))
			s.logHistory(ctx, res, resp)
			return res, nil
		}

		if ctx.Err() != nil {
			break
		}
	}

	// every provider failed, or none are configured
	s.stats.RecordFallback()
	res := &Result{
		Text:     s.fallback.Respond(prompt),
		Provider: SourceFallback,
		Fallback: true,
		Attempts: attempts,
		Latency:  time.Since(start),
	}
	if s.settings.CacheFallback && ctx.Err() == nil {
		s.store(ctx, key, res, s.settings.FallbackCacheTTL)
	}
	span.SetAttributes(attribute.Bool("fallback", true), attribute.Int("attempts", attempts))
	s.logger.Warn("all providers failed, serving fallback answer",
		zap.String("request_id", auth.GetRequestID(ctx)),
		zap.Int("attempts", attempts),
		zap.Strings("priority", order))
	s.logHistory(ctx, res, nil)
	return res, nil
}

// trialOrder is the priority list, narrowed to the override when it names a
// configured provider. pinned reports whether the override applied.
func (s *Service) trialOrder(override string) (order []string, pinned bool) {
	if override != "" {
		if s.registry.Has(override) {
			return []string{override}, true
		}
		s.logger.Warn("ignoring unknown provider override", zap.String("provider", override))
	}
	return s.priority.Get(), false
}

// quotaOpen reports whether name is being skipped after a quota error.
func (s *Service) quotaOpen(name string) bool {
	cb, ok := s.breakers[name]
	return ok && cb.State() == gobreaker.StateOpen
}

// attempt performs one bounded provider call and records its outcome.
func (s *Service) attempt(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.Response, error) {
	name := p.Name()
	ctx, span := s.tracer.Start(ctx, "assistant.provider")
	defer span.End()
	span.SetAttributes(attribute.String("provider", name))

	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	start := time.Now()
	var resp *provider.Response
	var err error
	if cb, ok := s.breakers[name]; ok {
		var out interface{}
		out, err = cb.Execute(func() (interface{}, error) {
			return p.Complete(callCtx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Debug("provider skipped, quota breaker open", zap.String("provider", name))
			span.SetAttributes(attribute.Bool("skipped", true))
			return nil, errSkipped
		}
		if err == nil {
			resp, _ = out.(*provider.Response)
		}
	} else {
		resp, err = p.Complete(callCtx, req)
	}
	elapsed := time.Since(start)

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = provider.Errorf(name, "empty response")
	}
	if err != nil {
		var perr *provider.Error
		if !errors.As(err, &perr) {
			err = &provider.Error{Provider: name, Err: err}
		}
		quota := provider.IsQuota(err)
		s.stats.RecordAttempt(name, stats.Failure, elapsed, 0, quota)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		s.logger.Warn("provider attempt failed",
			zap.String("provider", name),
			zap.Bool("quota", quota),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	tokens := resp.TotalTokens()
	s.stats.RecordAttempt(name, stats.Success, elapsed, tokens, false)
	s.logger.Info("provider answered",
		zap.String("provider", name),
		zap.String("model", resp.Model),
		zap.Int("tokens", tokens),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*Result, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var ca cachedAnswer
	if err := json.Unmarshal([]byte(raw), &ca); err != nil || ca.Text == "" {
		return nil, false
	}
	return &Result{
		Text:     ca.Text,
		Provider: ca.Provider,
		Model:    ca.Model,
		Cached:   true,
		Fallback: ca.Fallback,
	}, true
}

func (s *Service) store(ctx context.Context, key string, res *Result, ttl time.Duration) {
	if s.cache == nil || key == "" {
		return
	}
	data, err := json.Marshal(cachedAnswer{
		Text:     res.Text,
		Provider: res.Provider,
		Model:    res.Model,
		Fallback: res.Fallback,
	})
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, key, string(data), ttl); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (s *Service) logHistory(ctx context.Context, res *Result, resp *provider.Response) {
	if s.history == nil {
		return
	}
	rec := &history.Record{
		RequestID: auth.GetRequestID(ctx),
		Provider:  res.Provider,
		Model:     res.Model,
		Cached:    res.Cached,
		Fallback:  res.Fallback,
		Attempts:  res.Attempts,
		LatencyMs: res.Latency.Milliseconds(),
	}
	if res.Cached {
		rec.Provider = SourceCache
	}
	if resp != nil {
		rec.Tokens = resp.TotalTokens()
		if p, err := s.registry.Get(res.Provider); err == nil {
			rec.CostUSD = float64(resp.InputTokens)*p.CostPerInputToken() + float64(resp.OutputTokens)*p.CostPerOutputToken()
		}
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.history.Log(writeCtx, rec); err != nil {
			s.logger.Warn("failed to record request history", zap.Error(err))
		}
	}()
}
