package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithBackoffSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), testConfig(), "test", func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Fatal("expected success")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
}

func TestWithBackoffRetriesTransientErrors(t *testing.T) {
	calls := 0
	start := time.Now()
	result := WithBackoff(context.Background(), testConfig(), "test", func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	elapsed := time.Since(start)

	if !result.Success {
		t.Fatalf("expected success after retries, got %v", result.LastError)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	// Two retries: 10ms + 20ms of backoff at minimum.
	if elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms of backoff, got %v", elapsed)
	}
}

func TestWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), testConfig(), "test", func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("connection reset")
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithBackoffNonRetryableShortCircuits(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), testConfig(), "test", func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("execution reverted: insufficient balance")
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("non-retryable error must not be retried, got %d calls", calls)
	}
}

func TestWithBackoffStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithBackoff(ctx, testConfig(), "test", func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation took effect, got %d", calls)
	}
}

func TestDoWrapsExhaustedError(t *testing.T) {
	base := errors.New("connection refused")
	err := Do(context.Background(), testConfig(), "fetch", func(ctx context.Context, attempt int) error {
		return base
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, base) {
		t.Errorf("expected wrapped base error, got %v", err)
	}
}

func TestDoReturnsNonRetryableUnwrapped(t *testing.T) {
	base := errors.New("nonce too low")
	err := Do(context.Background(), testConfig(), "send", func(ctx context.Context, attempt int) error {
		return base
	})

	if err != base {
		t.Errorf("expected raw non-retryable error, got %v", err)
	}
}

func TestIsNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", errors.New("connection refused"), false},
		{"reverted", errors.New("execution reverted"), true},
		{"reverted mixed case", errors.New("Execution Reverted: out of funds"), true},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), true},
		{"nonce low", errors.New("nonce too low"), true},
		{"nonce high", errors.New("nonce too high"), true},
		{"underpriced", errors.New("replacement transaction underpriced"), true},
		{"already known", errors.New("already known"), true},
		{"invalid argument", errors.New("invalid argument 0: hex string"), true},
		{"invalid address", errors.New("invalid address"), true},
		{"invalid sender", errors.New("invalid sender"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNonRetryable(tt.err); got != tt.want {
				t.Errorf("IsNonRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	config := &Config{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateDelay(config, tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
