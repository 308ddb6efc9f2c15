package tools

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/MimeLyc/react-agent/pkg/log"
)

// RetryConfig controls exponential backoff retry for a tool.
type RetryConfig struct {
	MaxRetries int           // max retry attempts (0 = no retry)
	BaseDelay  time.Duration // initial backoff delay (default 500ms)
	MaxDelay   time.Duration // maximum backoff delay (default 10s)
}

// DefaultRetryConfig returns the defaults used when a retry count is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

type retryingTool struct {
	Tool
	cfg RetryConfig
}

// WithRetry decorates tool so that failed invocations are retried with
// exponential backoff and jitter. A non-positive MaxRetries returns tool unchanged.
func WithRetry(tool Tool, cfg RetryConfig) Tool {
	if cfg.MaxRetries <= 0 {
		return tool
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	return &retryingTool{Tool: tool, cfg: cfg}
}

func (t *retryingTool) Invoke(ctx context.Context, input string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		out, err := t.Tool.Invoke(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == t.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := backoffWithJitter(t.cfg.BaseDelay, t.cfg.MaxDelay, attempt)
		log.Warn("Tool %s failed (attempt %d/%d), retrying in %s: %v",
			t.Name(), attempt+1, t.cfg.MaxRetries+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastErr
		case <-timer.C:
		}
	}
	return "", lastErr
}

// backoffWithJitter computes delay = min(base * 2^attempt, max) + jitter(±25%).
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}

	quarter := delay / 4
	if quarter > 0 {
		jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
		delay += jitter
	}

	return delay
}
