package gemini

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
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := geminiResponse{
			Candidates: []geminiCandidate{
				{Content: &geminiContent{Role: "model", Parts: []geminiPart{{Text: "Hello "}, {Text: "from Gemini!"}}}},
			},
			UsageMetadata: geminiUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 20},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := p.Complete(context.Background(), &provider.Request{
		Messages:    provider.BuildMessages("hi", "Be brief."),
		Temperature: 0.7,
		MaxTokens:   500,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from Gemini!", resp.Content)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 20, resp.OutputTokens)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "Be brief.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, 500, got.GenerationConfig.MaxOutputTokens)
}

func TestComplete_ModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "k", BaseURL: server.URL})
	resp, err := p.Complete(context.Background(), &provider.Request{
		Model:    "gemini-1.5-pro",
		Messages: provider.BuildMessages("hi", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestComplete_MissingCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"finishReason":"SAFETY"}]}`))
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &provider.Request{Messages: provider.BuildMessages("hi", "")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestComplete_ResourceExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	p := New(provider.Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &provider.Request{Messages: provider.BuildMessages("hi", "")})
	assert.True(t, provider.IsQuota(err))
}

func TestName(t *testing.T) {
	assert.Equal(t, "gemini", New(provider.Config{}).Name())
}

func TestComplete_ErrorDoesNotExposeKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	p := New(provider.Config{APIKey: "SECRET-KEY-123", BaseURL: baseURL})
	_, err := p.Complete(context.Background(), &provider.Request{Messages: provider.BuildMessages("hi", "")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}
