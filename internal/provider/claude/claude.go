package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vnmchuo/lms-assistant/internal/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultModel     = "claude-3-5-haiku-20241022"
	anthropicVersion = "2023-06-01"
)

type ClaudeProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Content []claudeContent `json:"content"`
	Model   string          `json:"model"`
	Usage   claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func New(cfg provider.Config) *ClaudeProvider {
	p := &ClaudeProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  provider.NewHTTPClient(cfg.Timeout),
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.model == "" {
		p.model = defaultModel
	}
	return p
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	var out claudeResponse
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	url := fmt.Sprintf("%s/messages", p.baseURL)
	if err := provider.PostJSON(ctx, p.client, p.Name(), url, headers, p.mapRequest(req), &out); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, provider.Errorf(p.Name(), "response has no text content")
	}

	return &provider.Response{
		ID:           out.ID,
		Content:      content,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		Model:        out.Model,
		Provider:     p.Name(),
	}, nil
}

func (p *ClaudeProvider) mapRequest(req *provider.Request) claudeRequest {
	var system string
	var messages []claudeMessage

	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, claudeMessage{Role: role, Content: m.Content})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	// max_tokens is mandatory for the messages API
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	// anthropic accepts temperature in [0,1]
	temperature := req.Temperature
	if temperature > 1 {
		temperature = 1
	}

	return claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: temperature,
	}
}

func (p *ClaudeProvider) Name() string {
	return provider.Claude
}

func (p *ClaudeProvider) DefaultModel() string {
	return p.model
}

func (p *ClaudeProvider) CostPerInputToken() float64 {
	return 0.0000008
}

func (p *ClaudeProvider) CostPerOutputToken() float64 {
	return 0.000004
}
