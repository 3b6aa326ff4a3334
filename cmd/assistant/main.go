package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/config"
	"github.com/vnmchuo/lms-assistant/internal/api"
	"github.com/vnmchuo/lms-assistant/internal/assistant"
	"github.com/vnmchuo/lms-assistant/internal/cache"
	"github.com/vnmchuo/lms-assistant/internal/fallback"
	"github.com/vnmchuo/lms-assistant/internal/history"
	"github.com/vnmchuo/lms-assistant/internal/logging"
	"github.com/vnmchuo/lms-assistant/internal/priority"
	"github.com/vnmchuo/lms-assistant/internal/provider"
	"github.com/vnmchuo/lms-assistant/internal/provider/claude"
	"github.com/vnmchuo/lms-assistant/internal/provider/gemini"
	"github.com/vnmchuo/lms-assistant/internal/provider/openai"
	"github.com/vnmchuo/lms-assistant/internal/stats"
	"github.com/vnmchuo/lms-assistant/internal/telemetry"
	"github.com/vnmchuo/lms-assistant/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(api.ServiceName, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Connect Redis (optional)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
	}

	// 4. Connect PostgreSQL (optional)
	var historyStore history.Store
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore := history.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate postgres", zap.Error(err))
		}
		historyStore = pgStore
		logger.Info("PostgreSQL connected, request history enabled")
	}

	// 5. Init providers
	registry := provider.NewRegistry(buildProviders(cfg)...)
	if registry.Len() == 0 {
		logger.Warn("no AI provider keys configured, every answer will come from the fallback responder")
	}
	policy := priority.New(registry, priority.Default(cfg.ProviderPriority, cfg.UseFreeFirst))
	logger.Info("providers configured",
		zap.Strings("configured", registry.Names()),
		zap.Strings("priority", policy.Get()))

	// 6. Init cache
	var store cache.Store
	if cfg.EnableCache {
		if cfg.CacheBackend == "redis" {
			store = cache.NewRedisStore(rdb, "")
		} else {
			mem := cache.NewMemoryStore()
			go mem.RunJanitor(ctx, cfg.CacheTTL)
			store = mem
		}
		logger.Info("response cache enabled", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))
	}

	// 7. Init rate limiter
	var limiter *ratelimit.Limiter
	if rdb != nil && cfg.RateLimitRPM > 0 {
		limiter = ratelimit.NewLimiter(rdb, int(cfg.RateLimitRPM))
	}

	// 8. Init assistant
	collector := stats.New()
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(stats.NewExporter(collector))

	tracer := otel.GetTracerProvider().Tracer(api.ServiceName)
	svc := assistant.New(assistant.Deps{
		Registry: registry,
		Priority: policy,
		Cache:    store,
		Stats:    collector,
		Fallback: fallback.New(),
		History:  historyStore,
		Logger:   logger,
		Tracer:   tracer,
	}, assistant.Settings{
		Temperature:       &cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		CacheTTL:          cfg.CacheTTL,
		FallbackCacheTTL:  cfg.FallbackCacheTTL,
		CacheFallback:     cfg.CacheFallback,
		Timeout:           cfg.RequestTimeout,
		Backoff:           cfg.ProviderBackoff,
		QuotaShortCircuit: cfg.QuotaShortCircuit,
		QuotaCooldown:     cfg.QuotaCooldown,
	})

	// 9. Init HTTP
	handler := api.NewHandler(svc, historyStore, limiter, tracer, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, cfg.AdminToken, promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*cfg.RequestTimeout*time.Duration(max(registry.Len(), 1)) + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("LMS assistant starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	stop()
	svc.Wait()
	logger.Info("Server stopped")
}

// buildProviders returns an adapter for every provider with a key.
func buildProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, openai.New(provider.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.RequestTimeout,
		}))
	}
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, gemini.New(provider.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Timeout: cfg.RequestTimeout,
		}))
	}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, claude.New(provider.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Model:   cfg.ClaudeModel,
			Timeout: cfg.RequestTimeout,
		}))
	}
	return providers
}
