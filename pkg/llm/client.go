package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"contract-flow/pkg/config"
)

// ErrNotConfigured is returned when no API key is available for the selected provider.
var ErrNotConfigured = errors.New("llm provider is not configured")

// Request is a single-turn completion.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Client is what the analysis and signing services depend on.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New returns the client for cfg.Provider wrapped with the shared limiter and the
// configured timeout.
func New(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (Client, error) {
	var (
		inner Client
		err   error
	)
	switch cfg.Provider {
	case "gemini":
		inner, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		inner, err = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	}
	if err != nil {
		return nil, err
	}
	return &guarded{inner: inner, limiter: limiter, timeout: cfg.Timeout, logger: logger, provider: cfg.Provider}, nil
}

// NewLimiter converts a per-minute budget into a token bucket. A non-positive
// budget disables limiting.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

type guarded struct {
	inner    Client
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
	provider string
}

func (g *guarded) Complete(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm rate limit: %w", err)
		}
	}

	start := time.Now()
	out, err := g.inner.Complete(ctx, req)
	fields := []zap.Field{
		zap.String("provider", g.provider),
		zap.Int("prompt_bytes", len(req.System)+len(req.User)),
		zap.Bool("json", req.JSON),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		g.logger.Warn("llm.complete.error", append(fields, zap.Error(err))...)
		return "", err
	}
	g.logger.Info("llm.complete.ok", append(fields, zap.Int("response_bytes", len(out)))...)
	return out, nil
}
