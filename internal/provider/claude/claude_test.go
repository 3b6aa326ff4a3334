package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/lms-assistant/internal/provider"
)

func TestComplete_Mock(t *testing.T) {
	var got claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := claudeResponse{
			ID:      "msg_1",
			Content: []claudeContent{{Type: "text", Text: "Hello from Claude!"}},
			Model:   defaultModel,
			Usage:   claudeUsage{InputTokens: 8, OutputTokens: 12},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := p.Complete(context.Background(), &provider.Request{
		Messages:    provider.BuildMessages("hi", "You are a tutor."),
		Temperature: 1.5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from Claude!", resp.Content)
	assert.Equal(t, 20, resp.TotalTokens())

	assert.Equal(t, "You are a tutor.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Equal(t, 1.0, got.Temperature)
}

func TestComplete_CreditBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"message":"Your credit balance is too low"}}`))
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &provider.Request{Messages: provider.BuildMessages("hi", "")})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrQuotaExceeded)
}

func TestComplete_NoTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m","content":[{"type":"tool_use"}]}`))
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &provider.Request{Messages: provider.BuildMessages("hi", "")})
	require.Error(t, err)
	assert.False(t, provider.IsQuota(err))
}

func TestName(t *testing.T) {
	assert.Equal(t, "claude", New(provider.Config{}).Name())
}
