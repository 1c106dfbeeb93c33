package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	fail    map[string]error
	results map[string]string
	calls   []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	p.calls = append(p.calls, model)
	if err, ok := p.fail[model]; ok {
		return "", err
	}
	return p.results[model], nil
}

func (p *scriptedProvider) Transcribe(ctx context.Context, model string, mimeType string, audio []byte, prompt string) (string, error) {
	return p.Generate(ctx, model, prompt)
}

func newCaller(t *testing.T, p IProvider, models ...string) *Caller {
	t.Helper()
	caller, err := NewCaller(p, CallerConfig{
		Models:     models,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return caller
}

func TestCallerExcludesFailedModelOnRetry(t *testing.T) {
	provider := &scriptedProvider{
		fail:    map[string]error{"model-a": errors.New("503 service unavailable")},
		results: map[string]string{"model-b": "transcribed"},
	}
	caller := newCaller(t, provider, "model-a", "model-b")

	result, err := caller.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "transcribed", result)
	require.Equal(t, []string{"model-a", "model-b"}, provider.calls)
}

func TestCallerExhaustsRetries(t *testing.T) {
	provider := &scriptedProvider{
		fail: map[string]error{"model-a": ErrUnavailable},
	}
	caller := newCaller(t, provider, "model-a")

	_, err := caller.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
	// Exclusion set resets when every model is out; the single model is
	// retried up to the bound.
	require.Len(t, provider.calls, 3)
}

func TestCallerEmptyResultIsFailure(t *testing.T) {
	provider := &scriptedProvider{
		results: map[string]string{"model-a": "   "},
	}
	caller := newCaller(t, provider, "model-a")

	_, err := caller.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty result")
}

func TestCallerNonRetryableErrorDoesNotExclude(t *testing.T) {
	provider := &scriptedProvider{
		fail: map[string]error{"model-a": errors.New("invalid argument")},
	}
	caller := newCaller(t, provider, "model-a", "model-b")

	_, err := caller.Generate(context.Background(), "prompt")
	require.Error(t, err)
	// A permanent error keeps pointing at the same backend.
	require.Equal(t, []string{"model-a", "model-a", "model-a"}, provider.calls)
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(ErrUnavailable))
	require.True(t, Retryable(errors.New("http 503")))
	require.True(t, Retryable(errors.New("model overloaded")))
	require.True(t, Retryable(errors.New("429 rate limit exceeded")))
	require.False(t, Retryable(errors.New("bad request")))
	require.False(t, Retryable(nil))
}

func TestNewCallerRequiresModels(t *testing.T) {
	_, err := NewCaller(&scriptedProvider{}, CallerConfig{})
	require.Error(t, err)
}
