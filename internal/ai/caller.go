package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CallerConfig struct {
	Models     []string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Caller runs provider calls with bounded retries. Models that failed with a
// transient error are carried in an exclusion set so the next attempt picks
// a different backend; the set resets once every model has been excluded.
type Caller struct {
	provider IProvider
	cfg      CallerConfig
}

func NewCaller(provider IProvider, cfg CallerConfig) (*Caller, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Caller{provider: provider, cfg: cfg}, nil
}

func (c *Caller) Generate(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, func(ctx context.Context, model string) (string, error) {
		return c.provider.Generate(ctx, model, prompt)
	})
}

func (c *Caller) Transcribe(ctx context.Context, mimeType string, audio []byte, prompt string) (string, error) {
	return c.call(ctx, func(ctx context.Context, model string) (string, error) {
		return c.provider.Transcribe(ctx, model, mimeType, audio, prompt)
	})
}

func (c *Caller) call(ctx context.Context, fn func(ctx context.Context, model string) (string, error)) (string, error) {
	excluded := make(map[string]bool)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		model := c.pickModel(excluded)
		attemptCtx := ctx
		cancel := func() {}
		if c.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		}
		result, err := fn(attemptCtx, model)
		cancel()
		if err == nil {
			if strings.TrimSpace(result) == "" {
				err = fmt.Errorf("model %s returned empty result", model)
			} else {
				return result, nil
			}
		}
		lastErr = err
		if Retryable(err) {
			excluded[model] = true
		}
		logutil.GetLogger(ctx).Warn("ai call failed",
			zap.Int("attempt", attempt),
			zap.String("model", model),
			zap.Error(err))
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
	return "", fmt.Errorf("ai call failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// pickModel returns the first configured model outside the exclusion set.
// When every model has been excluded the set is cleared and rotation starts
// over from the front.
func (c *Caller) pickModel(excluded map[string]bool) string {
	for _, model := range c.cfg.Models {
		if !excluded[model] {
			return model
		}
	}
	for model := range excluded {
		delete(excluded, model)
	}
	return c.cfg.Models[0]
}

// Retryable reports whether an error looks like transient upstream
// unavailability worth pointing at another backend.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"503", "unavailable", "overloaded", "rate", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
