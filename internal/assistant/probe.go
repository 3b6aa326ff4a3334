package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/internal/provider"
)

const probePrompt = "Reply with a one-sentence greeting for a new learner."

// ProbeResult is the outcome of TestProvider.
type ProbeResult struct {
	Provider  string `json:"provider"`
	Success   bool   `json:"success"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Quota     bool   `json:"quota,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// TestProvider calls one provider directly, bypassing the cache, the
// priority list, the quota breaker and statistics.
func (s *Service) TestProvider(ctx context.Context, name, prompt string) (*ProbeResult, error) {
	p, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = probePrompt
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.Complete(callCtx, &provider.Request{
		Messages:    provider.BuildMessages(prompt, s.settings.SystemPrompt),
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.temperature(),
	})
	out := &ProbeResult{
		Provider:  name,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		out.Error = err.Error()
		out.Quota = provider.IsQuota(err)
		s.logger.Info("provider probe failed", zap.String("provider", name), zap.Error(err))
		return out, nil
	}
	out.Success = true
	out.Response = resp.Content
	return out, nil
}
