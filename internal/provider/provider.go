package provider

import (
	"context"
	"time"
)

// Well-known provider identifiers.
const (
	OpenAI = "openai"
	Gemini = "gemini"
	Claude = "claude"
)

type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

type Response struct {
	ID           string
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	Provider     string
}

// TotalTokens returns the reported token usage, or a rough estimate
// (4 characters per token) when the provider did not report any.
func (r *Response) TotalTokens() int {
	if n := r.InputTokens + r.OutputTokens; n > 0 {
		return n
	}
	return len(r.Content)/4 + 1
}

// Config is the static configuration of a single provider adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
	DefaultModel() string
	CostPerInputToken() float64 // cost in USD per 1 token
	CostPerOutputToken() float64
}

// BuildMessages turns a prompt and an optional system context into the
// message list every adapter understands.
func BuildMessages(prompt, system string) []Message {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	return append(msgs, Message{Role: "user", Content: prompt})
}
