// Package retry provides the shared retry policy used by all remote calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fundchain-core/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (including the first)
	InitialDelay time.Duration // Base delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig returns the retry policy for general contract calls.
// Pattern: 500ms, 1s, 2s, 4s, capped at 10s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// ProbeConfig returns the tighter policy used for connection probes,
// where a slow endpoint should be marked degraded quickly.
func ProbeConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// nonRetryable lists error fragments that must never be retried: the outcome
// is deterministic and a retry would only repeat the failure (or, for nonce
// conflicts, make things worse).
var nonRetryable = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"nonce too high",
	"replacement transaction underpriced",
	"already known",
	"invalid argument",
	"invalid address",
	"invalid sender",
}

// IsNonRetryable reports whether the error must be surfaced immediately
// instead of retried.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range nonRetryable {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// WithBackoff executes a function under the retry policy. Non-retryable
// errors short-circuit after the first attempt; everything else backs off
// exponentially: delay = min(initial * multiplier^attempt, max).
func WithBackoff(ctx context.Context, config *Config, label string, fn Func) *Result {
	logger := logging.FromContext(ctx).WithField("operation", label)
	startTime := time.Now()

	result := &Result{}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration.String(),
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		lastErr = err
		result.LastError = err

		if IsNonRetryable(err) {
			logger.WithError(err).Warn("Non-retryable error, surfacing immediately")
			break
		}

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	result.LastError = lastErr
	return result
}

// Do executes a function under the given policy and returns the final error.
func Do(ctx context.Context, config *Config, label string, fn Func) error {
	result := WithBackoff(ctx, config, label, fn)
	if result.Success {
		return nil
	}

	if IsNonRetryable(result.LastError) {
		return result.LastError
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", label, result.Attempts, result.LastError)
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(config *Config, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
