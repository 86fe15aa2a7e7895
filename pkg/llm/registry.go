package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"contract-flow/pkg/config"
	"contract-flow/pkg/lru"
)

// maxClients bounds the cached clients. Each session key override adds one.
const maxClients = 32

// Registry hands out clients per effective LLM configuration. Session key
// overrides produce distinct configurations, so the most recently used
// clients are cached per key and all of them share one limiter.
type Registry struct {
	mu      sync.Mutex
	clients *lru.Cache[string, Client]
	limiter *rate.Limiter
	logger  *zap.Logger
	build   func(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (Client, error)
}

func NewRegistry(limiter *rate.Limiter, logger *zap.Logger) *Registry {
	return &Registry{
		clients: lru.New[string, Client](maxClients),
		limiter: limiter,
		logger:  logger,
		build:   New,
	}
}

// For returns the client for cfg, creating it on first use.
func (r *Registry) For(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	key := cacheKey(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients.Get(key); ok {
		return c, nil
	}
	c, err := r.build(ctx, cfg, r.limiter, r.logger)
	if err != nil {
		return nil, err
	}
	r.clients.Add(key, c)
	return c, nil
}

func cacheKey(cfg config.LLMConfig) string {
	h := sha256.New()
	for _, part := range []string{cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout.String()} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
