package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nonRetryableErr struct{}

func (nonRetryableErr) Error() string   { return "non-retryable" }
func (nonRetryableErr) Retryable() bool { return false }

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	calls := 0
	wantErr := errors.New("upstream down")
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return nonRetryableErr{}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, cfg, func() error {
		calls++
		return errors.New("still failing")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 5)
}

func TestLinearRetryConfigHasConstantDelay(t *testing.T) {
	cfg := LinearRetryConfig(4, 10*time.Millisecond)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 1.0, cfg.Multiplier)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, cfg.InitialDelay, nextDelay(cfg.InitialDelay, cfg))
}
