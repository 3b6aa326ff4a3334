package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.EnableCache)
	assert.True(t, cfg.CacheFallback)
	assert.False(t, cfg.UseFreeFirst)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 60*time.Second, cfg.FallbackCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ProviderBackoff)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 500, cfg.MaxTokens)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROVIDER_PRIORITY", "gemini,openai")
	t.Setenv("USE_FREE_FIRST", "true")
	t.Setenv("ENABLE_CACHE", "false")
	t.Setenv("CACHE_DURATION", "1000")
	t.Setenv("REQUEST_TIMEOUT", "5000")
	t.Setenv("AI_TEMPERATURE", "1.2")
	t.Setenv("AI_MAX_TOKENS", "256")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini,openai", cfg.ProviderPriority)
	assert.True(t, cfg.UseFreeFirst)
	assert.False(t, cfg.EnableCache)
	assert.Equal(t, time.Second, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1.2, cfg.Temperature)
	assert.Equal(t, 256, cfg.MaxTokens)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad bool":        {"ENABLE_CACHE", "maybe"},
		"bad duration":    {"CACHE_DURATION", "5m"},
		"negative":        {"REQUEST_TIMEOUT", "-1"},
		"temperature":     {"AI_TEMPERATURE", "3"},
		"max tokens":      {"AI_MAX_TOKENS", "0"},
		"backend":         {"CACHE_BACKEND", "memcached"},
		"redis w/o addr":  {"CACHE_BACKEND", "redis"},
		"bad rate limit":  {"RATE_LIMIT_RPM", "lots"},
		"bad temperature": {"AI_TEMPERATURE", "warm"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
