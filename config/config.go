package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port       string // default: 8080
	AdminToken string // empty disables the admin guard

	// Providers
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	AnthropicAPIKey  string
	ClaudeModel      string
	AnthropicBaseURL string

	// Orchestration
	ProviderPriority  string // comma list, overrides UseFreeFirst
	UseFreeFirst      bool
	RequestTimeout    time.Duration
	ProviderBackoff   time.Duration
	QuotaShortCircuit bool
	QuotaCooldown     time.Duration
	Temperature       float64
	MaxTokens         int

	// Cache
	EnableCache      bool
	CacheBackend     string // "memory" or "redis"
	CacheTTL         time.Duration
	FallbackCacheTTL time.Duration
	CacheFallback    bool

	// Infrastructure, all optional
	RedisAddr   string
	PostgresDSN string

	// Rate Limiting
	RateLimitRPM int64 // chat requests per client per minute

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
	LogLevel             string
	LogFormat            string // "json" or "console"
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          os.Getenv("GEMINI_MODEL"),
		GeminiBaseURL:        os.Getenv("GEMINI_BASE_URL"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:          os.Getenv("CLAUDE_MODEL"),
		AnthropicBaseURL:     os.Getenv("ANTHROPIC_BASE_URL"),
		ProviderPriority:     os.Getenv("PROVIDER_PRIORITY"),
		CacheBackend:         strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.UseFreeFirst, err = getBool("USE_FREE_FIRST", false); err != nil {
		return nil, err
	}
	if cfg.QuotaShortCircuit, err = getBool("QUOTA_SHORT_CIRCUIT", false); err != nil {
		return nil, err
	}
	if cfg.EnableCache, err = getBool("ENABLE_CACHE", true); err != nil {
		return nil, err
	}
	if cfg.CacheFallback, err = getBool("CACHE_FALLBACK", true); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getMillis("REQUEST_TIMEOUT", 30000); err != nil {
		return nil, err
	}
	if cfg.ProviderBackoff, err = getMillis("PROVIDER_BACKOFF", 500); err != nil {
		return nil, err
	}
	if cfg.QuotaCooldown, err = getMillis("QUOTA_COOLDOWN", 60000); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getMillis("CACHE_DURATION", 300000); err != nil {
		return nil, err
	}
	if cfg.FallbackCacheTTL, err = getMillis("FALLBACK_CACHE_DURATION", 60000); err != nil {
		return nil, err
	}

	tempStr := getEnv("AI_TEMPERATURE", "0.7")
	cfg.Temperature, err = strconv.ParseFloat(tempStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TEMPERATURE: %w", err)
	}

	tokStr := getEnv("AI_MAX_TOKENS", "500")
	cfg.MaxTokens, err = strconv.Atoi(tokStr)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_MAX_TOKENS: %w", err)
	}

	rpmStr := getEnv("RATE_LIMIT_RPM", "60")
	cfg.RateLimitRPM, err = strconv.ParseInt(rpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPM: %w", err)
	}

	// Validation
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("AI_TEMPERATURE must be within [0,2], got %v", cfg.Temperature)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", cfg.MaxTokens)
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		return nil, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", cfg.CacheBackend)
	}
	if cfg.CacheBackend == "redis" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getMillis(key string, fallback int64) (time.Duration, error) {
	ms, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(fallback, 10)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
