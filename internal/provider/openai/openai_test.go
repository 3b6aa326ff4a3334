package openai

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

func newTestProvider(url string) *OpenAIProvider {
	return New(provider.Config{APIKey: "test-key", BaseURL: url})
}

func TestComplete_Mock(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := openAIResponse{
			ID: "test-id",
			Choices: []openAIChoice{
				{Message: &openAIMessage{Role: "assistant", Content: "Hello from OpenAI mock!"}},
			},
			Usage: openAIUsage{PromptTokens: 15, CompletionTokens: 25},
			Model: "gpt-4o-mini",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	req := &provider.Request{
		Messages:    provider.BuildMessages("hi", "You are a tutor."),
		MaxTokens:   500,
		Temperature: 0.7,
	}

	resp, err := p.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Hello from OpenAI mock!", resp.Content)
	assert.Equal(t, 15, resp.InputTokens)
	assert.Equal(t, 25, resp.OutputTokens)
	assert.Equal(t, provider.OpenAI, resp.Provider)

	assert.Equal(t, defaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, 500, got.MaxTokens)
}

func TestComplete_QuotaStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota"}}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Complete(context.Background(), &provider.Request{
		Messages: provider.BuildMessages("hi", ""),
	})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.OpenAI, perr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.ErrorIs(t, err, provider.ErrQuotaExceeded)
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Complete(context.Background(), &provider.Request{
		Messages: provider.BuildMessages("hi", ""),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, provider.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "no choices")
}

func TestComplete_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Complete(context.Background(), &provider.Request{
		Messages: provider.BuildMessages("hi", ""),
	})
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.StatusCode)
}

func TestName(t *testing.T) {
	p := New(provider.Config{APIKey: "key"})
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, defaultModel, p.DefaultModel())
}
