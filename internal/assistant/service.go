// Package assistant answers learner prompts by trying the configured LLM
// providers in priority order, memoizing answers, and falling back to
// canned responses when every provider fails.
package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/internal/cache"
	"github.com/vnmchuo/lms-assistant/internal/fallback"
	"github.com/vnmchuo/lms-assistant/internal/history"
	"github.com/vnmchuo/lms-assistant/internal/priority"
	"github.com/vnmchuo/lms-assistant/internal/provider"
	"github.com/vnmchuo/lms-assistant/internal/stats"
)

// ErrEmptyPrompt is the only error Respond returns.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

const (
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Deps are the collaborators of a Service. Cache and History may be nil,
// which disables caching and request history respectively.
type Deps struct {
	Registry *provider.Registry
	Priority *priority.Policy
	Cache    cache.Store
	Stats    *stats.Collector
	Fallback *fallback.Responder
	History  history.Store
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

type Service struct {
	registry *provider.Registry
	priority *priority.Policy
	cache    cache.Store
	stats    *stats.Collector
	fallback *fallback.Responder
	history  history.Store
	logger   *zap.Logger
	tracer   trace.Tracer
	settings Settings

	breakers map[string]*gobreaker.CircuitBreaker
	sleep    func(ctx context.Context, d time.Duration) error
	pending  sync.WaitGroup
}

func New(deps Deps, settings Settings) *Service {
	s := &Service{
		registry: deps.Registry,
		priority: deps.Priority,
		cache:    deps.Cache,
		stats:    deps.Stats,
		fallback: deps.Fallback,
		history:  deps.History,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		settings: settings.withDefaults(),
		sleep:    sleepCtx,
	}
	if s.registry == nil {
		s.registry = provider.NewRegistry()
	}
	if s.priority == nil {
		s.priority = priority.New(s.registry, s.registry.Names())
	}
	if s.stats == nil {
		s.stats = stats.New()
	}
	if s.fallback == nil {
		s.fallback = fallback.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("assistant")
	}
	if s.settings.QuotaShortCircuit {
		s.breakers = newQuotaBreakers(s.registry.Names(), s.settings.QuotaCooldown, s.logger)
	}
	return s
}

// newQuotaBreakers builds one breaker per provider that only counts quota
// failures, so a provider that reported 429/402 is skipped until cooldown
// elapses.
func newQuotaBreakers(names []string, cooldown time.Duration, logger *zap.Logger) map[string]*gobreaker.CircuitBreaker {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(names))
	for _, name := range names {
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !provider.IsQuota(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("quota breaker state change",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}
		breakers[name] = gobreaker.NewCircuitBreaker(settings)
	}
	return breakers
}

// GetResponse always yields a usable answer for a non-empty prompt.
// system is optional context prepended as a system message.
func (s *Service) GetResponse(ctx context.Context, prompt, system string, opts *Options) (string, error) {
	res, err := s.Respond(ctx, prompt, system, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (s *Service) Priority() []string {
	return s.priority.Get()
}

func (s *Service) SetPriority(order []string) error {
	if err := s.priority.Set(order); err != nil {
		return err
	}
	s.logger.Info("provider priority updated", zap.Strings("priority", s.priority.Get()))
	return nil
}

func (s *Service) Stats() stats.Snapshot {
	return s.stats.Snapshot()
}

// ClearCache drops every cached answer and returns how many were removed.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Clear(ctx)
	if err != nil {
		return n, err
	}
	s.logger.Info("cache cleared", zap.Int("entries", n))
	return n, nil
}

// CacheEnabled reports whether answers are memoized.
func (s *Service) CacheEnabled() bool {
	return s.cache != nil
}

type ProviderInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"defaultModel"`
	BreakerState string `json:"breakerState,omitempty"`
}

// Providers lists the configured providers in current priority order,
// followed by any configured provider missing from the priority list.
func (s *Service) Providers() []ProviderInfo {
	seen := make(map[string]bool)
	var out []ProviderInfo
	add := func(name string) {
		if seen[name] {
			return
		}
		p, err := s.registry.Get(name)
		if err != nil {
			return
		}
		seen[name] = true
		info := ProviderInfo{Name: name, DefaultModel: p.DefaultModel()}
		if cb, ok := s.breakers[name]; ok {
			info.BreakerState = cb.State().String()
		}
		out = append(out, info)
	}
	for _, name := range s.priority.Get() {
		add(name)
	}
	for _, name := range s.registry.Names() {
		add(name)
	}
	return out
}

// Wait blocks until background history writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
