package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"contract-flow/pkg/config"
)

type stubClient struct {
	out string
	err error
	got Request
}

func (s *stubClient) Complete(ctx context.Context, req Request) (string, error) {
	s.got = req
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("expected a deadline")
	}
	return s.out, s.err
}

func TestGuardedAppliesTimeoutAndPassesThrough(t *testing.T) {
	stub := &stubClient{out: "ok"}
	g := &guarded{inner: stub, limiter: NewLimiter(0), timeout: time.Second, logger: zap.NewNop()}

	out, err := g.Complete(context.Background(), Request{User: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.True(t, stub.got.JSON)
}

func TestGuardedReturnsInnerError(t *testing.T) {
	stub := &stubClient{err: errors.New("503")}
	g := &guarded{inner: stub, limiter: NewLimiter(10), timeout: time.Second, logger: zap.NewNop()}

	_, err := g.Complete(context.Background(), Request{User: "hi"})
	assert.EqualError(t, err, "503")
}

func TestNewWithoutKey(t *testing.T) {
	_, err := NewOpenAI("", "", "gpt-4o-mini")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewGemini(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []string{"score"},
		"properties": map[string]any{
			"score": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
		},
	}
	assert.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"score": 7}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"score": 11}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`not json`)))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripCodeFence("```\n[1]\n```"))
	assert.Equal(t, `plain`, StripCodeFence("  plain "))
}

func TestRegistryCachesPerConfig(t *testing.T) {
	builds := 0
	r := NewRegistry(NewLimiter(0), zap.NewNop())
	r.build = func(ctx context.Context, cfg config.LLMConfig, _ *rate.Limiter, _ *zap.Logger) (Client, error) {
		builds++
		if cfg.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return &stubClient{out: cfg.APIKey}, nil
	}

	a, err := r.For(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "a"})
	require.NoError(t, err)
	again, err := r.For(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "a"})
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = r.For(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "b"})
	require.NoError(t, err)
	_, err = r.For(context.Background(), config.LLMConfig{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 3, builds)
}

func TestRegistryBoundsSessionOverrides(t *testing.T) {
	r := NewRegistry(NewLimiter(0), zap.NewNop())
	r.build = func(ctx context.Context, cfg config.LLMConfig, _ *rate.Limiter, _ *zap.Logger) (Client, error) {
		return &stubClient{out: cfg.APIKey}, nil
	}

	base := config.LLMConfig{Provider: "openai", APIKey: "base"}
	first, err := r.For(context.Background(), base)
	require.NoError(t, err)

	for i := 0; i < 3*maxClients; i++ {
		_, err := r.For(context.Background(), config.LLMConfig{Provider: "openai", APIKey: fmt.Sprintf("sk-%d", i)})
		require.NoError(t, err)
		assert.LessOrEqual(t, r.clients.Len(), maxClients)
	}

	again, err := r.For(context.Background(), base)
	require.NoError(t, err)
	assert.NotSame(t, first, again, "evicted clients are rebuilt")
}
