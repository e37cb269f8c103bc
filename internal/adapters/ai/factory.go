package ai

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"creditgate/internal/adapters/config"
)

// BuildRegistry initializes a ProviderRegistry with every provider that has
// an API key configured. redisClient is optional: when set together with
// distributed limits, rate limiting is shared across instances; otherwise
// each instance limits locally.
func BuildRegistry(ctx context.Context, cfg config.ProviderConfig, redisClient *redis.Client) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	limiterFor := func(name ProviderName) RateLimiter {
		if !cfg.RateLimitEnabled {
			return NewNoOpLimiter()
		}
		if cfg.DistributedLimits && redisClient != nil {
			return NewRedisLimiter(redisClient, name, float64(cfg.RateLimitPerMin), cfg.RateLimitBurst)
		}
		return NewLocalLimiter(name, float64(cfg.RateLimitPerMin), cfg.RateLimitBurst)
	}

	if cfg.AnthropicKey != "" {
		p := NewAnthropicProvider(cfg.AnthropicKey, timeout, limiterFor(ProviderNameAnthropic))
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	if cfg.OpenAIKey != "" {
		p := NewOpenAIProvider(cfg.OpenAIKey, timeout, limiterFor(ProviderNameOpenAI))
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey, timeout, limiterFor(ProviderNameGemini))
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
