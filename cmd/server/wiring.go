package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/config"
	"github.com/lunaos-ai/OpenHands/internal/jobs"
	"github.com/lunaos-ai/OpenHands/internal/llm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

func buildCredentials(cfg config.LLMConfig) *llm.Credentials {
	return &llm.Credentials{
		OpenAIKey:    cfg.OpenAIKey,
		AnthropicKey: cfg.AnthropicKey,
		GeminiKey:    cfg.GeminiKey,
		OpenAIOAuth:  cfg.OpenAIOAuth.Enabled(),
	}
}

func buildResolver(cfg config.LLMConfig, credentials *llm.Credentials) *llm.Resolver {
	return llm.NewResolver(credentials, llm.DefaultModels{
		OpenAI:    cfg.OpenAIModel,
		Anthropic: cfg.AnthropicModel,
		Gemini:    cfg.GeminiModel,
	})
}

// buildRegistry registers every provider. Abandoned calls are still bounded
// by the HTTP client timeout so they release their pool slot eventually.
func buildRegistry(cfg config.LLMConfig, logger *zap.Logger) *llm.Registry {
	if cfg.StubResponse != "" {
		logger.Warn("LLM_STUB_RESPONSE is set; every provider returns a fixed reply")
		return llm.NewRegistry(
			llm.NewStubProvider(llm.ProviderOpenAI, cfg.StubResponse, logger),
			llm.NewStubProvider(llm.ProviderAnthropic, cfg.StubResponse, logger),
			llm.NewStubProvider(llm.ProviderGemini, cfg.StubResponse, logger),
		)
	}

	httpClient := &http.Client{Timeout: 2 * cfg.Timeout}
	openAI := llm.OpenAIConfig{BaseURL: cfg.OpenAIBaseURL, HTTPClient: httpClient, Logger: logger}
	if cfg.OpenAIOAuth.Enabled() {
		openAI.OAuth = &clientcredentials.Config{
			ClientID:     cfg.OpenAIOAuth.ClientID,
			ClientSecret: cfg.OpenAIOAuth.ClientSecret,
			TokenURL:     cfg.OpenAIOAuth.TokenURL,
			Scopes:       cfg.OpenAIOAuth.Scopes,
		}
	}

	return llm.NewRegistry(
		llm.NewOpenAIProvider(openAI),
		llm.NewAnthropicProvider(llm.AnthropicConfig{BaseURL: cfg.AnthropicBaseURL, HTTPClient: httpClient, Logger: logger}),
		llm.NewGeminiProvider(llm.GeminiConfig{HTTPClient: httpClient, Logger: logger}),
	)
}

// buildJobRunner returns a nil runner when JOBS_BACKEND is "none".
func buildJobRunner(cfg *config.Config, executor jobs.TaskExecutor, logger *zap.Logger) (*jobs.Runner, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.Jobs.Backend) {
	case "none":
		logger.Info("async jobs disabled")
		return nil, noop, nil
	case "", "memory":
		store := jobs.NewMemoryStore(cfg.Jobs.MaxEntries, cfg.Jobs.TTL)
		return jobs.NewRunner(store, executor, logger), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := jobs.NewRedisStore(client, cfg.Jobs.TTL)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("async jobs stored in redis", zap.String("addr", cfg.Redis.Addr))
		return jobs.NewRunner(store, executor, logger), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown JOBS_BACKEND %q", cfg.Jobs.Backend)
	}
}

func logCredentialStatus(logger *zap.Logger, credentials *llm.Credentials) {
	for _, provider := range []string{llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini} {
		logger.Info("provider credential", zap.String("provider", provider), zap.Bool("configured", credentials.Has(provider)))
	}
	if !credentials.Any() {
		logger.Warn("no LLM API key configured; task requests will fail until one is set")
	}
}
