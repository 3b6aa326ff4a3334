package assistant

import (
	"strings"
	"time"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500

	DefaultSystemPrompt = "You are a friendly, concise learning assistant for an online course platform. " +
		"Explain programming and data topics clearly, and point learners to relevant courses when it helps."
)

// Options tunes a single request. Zero values are filled from Settings.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Model       string   `json:"model,omitempty"`
	Provider    string   `json:"provider,omitempty"`
}

// Settings is the process-wide configuration of a Service. It is copied at
// construction and never mutated. A nil Temperature means DefaultTemperature;
// an explicit 0 is kept.
type Settings struct {
	Temperature       *float64
	MaxTokens         int
	CacheTTL          time.Duration
	FallbackCacheTTL  time.Duration
	CacheFallback     bool
	Timeout           time.Duration
	Backoff           time.Duration
	QuotaShortCircuit bool
	QuotaCooldown     time.Duration
	SystemPrompt      string
}

func (s Settings) withDefaults() Settings {
	temp := DefaultTemperature
	if s.Temperature != nil && *s.Temperature >= 0 && *s.Temperature <= 2 {
		temp = *s.Temperature
	}
	s.Temperature = &temp
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 300 * time.Second
	}
	if s.FallbackCacheTTL <= 0 {
		s.FallbackCacheTTL = 60 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.Backoff < 0 {
		s.Backoff = 0
	}
	if s.QuotaCooldown <= 0 {
		s.QuotaCooldown = time.Minute
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = DefaultSystemPrompt
	}
	return s
}

func (s Settings) temperature() float64 {
	if s.Temperature == nil {
		return DefaultTemperature
	}
	return *s.Temperature
}

// resolvedOptions is the normalized option set; it is also part of the
// cache key.
type resolvedOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Model       string  `json:"model,omitempty"`
	Provider    string  `json:"provider,omitempty"`
}

func (s *Service) resolve(opts *Options) resolvedOptions {
	r := resolvedOptions{
		Temperature: s.settings.temperature(),
		MaxTokens:   s.settings.MaxTokens,
	}
	if opts == nil {
		return r
	}
	if opts.Temperature != nil {
		r.Temperature = clamp(*opts.Temperature, 0, 2)
	}
	if opts.MaxTokens > 0 {
		r.MaxTokens = opts.MaxTokens
	}
	r.Model = strings.TrimSpace(opts.Model)
	r.Provider = strings.ToLower(strings.TrimSpace(opts.Provider))
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
