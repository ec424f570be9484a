package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(_ context.Context) (int, error) { return 0, errors.New("quota exceeded") }

func succeeding(_ context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("anthropic", 2, time.Minute)
	ctx := context.Background()

	_, err := Call(ctx, b, failing)
	require.Error(t, err)
	assert.Equal(t, BreakerClosed, b.State())

	_, err = Call(ctx, b, failing)
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	_, err = Call(ctx, b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker("anthropic", 2, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, b, failing)
	_, _ = Call(ctx, b, succeeding)
	_, _ = Call(ctx, b, failing)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker("anthropic", 1, 10*time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Call(ctx, b, failing)
	require.Equal(t, BreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	v, err := Call(ctx, b, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("anthropic", 1, 10*time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Call(ctx, b, failing)
	now = now.Add(11 * time.Second)
	_, err := Call(ctx, b, failing)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, BreakerOpen, b.State())

	_, err = Call(ctx, b, succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	b := NewBreaker("anthropic", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, b, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
	require.Error(t, err)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_NilCallsThrough(t *testing.T) {
	v, err := Call(context.Background(), nil, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
