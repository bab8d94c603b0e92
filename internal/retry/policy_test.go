package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, config.RetryBackoffLinear, p.Mode)
	assert.Equal(t, time.Second, p.Initial)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.Equal(t, 2, p.MaxRetries)
}

func TestNewPolicy_ClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial)
	assert.Equal(t, config.RetryBackoffFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)
}

func TestNewPolicy_UnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	assert.Equal(t, config.RetryBackoffLinear, p.Mode)
}

func TestFromConfig(t *testing.T) {
	n := 0
	p := FromConfig(config.RetryConfig{Backoff: "exponential", InitialDelay: "200ms", MaxDelay: "1s", MaxRetries: &n})
	assert.Equal(t, Policy{Mode: config.RetryBackoffExponential, Initial: 200 * time.Millisecond, Max: time.Second, MaxRetries: 0}, p)

	assert.Equal(t, DefaultPolicy(), FromConfig(config.RetryConfig{}))
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	linear := NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5)
	exp := NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5)
	fixed := NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3)

	for i, want := range []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms} {
		assert.Equal(t, want, linear.Delay(i+1), "linear retry %d", i+1)
	}
	for i, want := range []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms} {
		assert.Equal(t, want, exp.Delay(i+1), "exponential retry %d", i+1)
	}
	assert.Equal(t, 100*ms, fixed.Delay(3))
	assert.Equal(t, time.Duration(0), linear.Delay(0))
	assert.Equal(t, 160*ms, exp.Delay(64))
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, time.Millisecond, time.Second, 2)
	var delays []time.Duration
	calls := 0
	err := p.Do(t.Context(), noSleep, func(int) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil, func(_ int, d time.Duration, _ error) { delays = append(delays, d) })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_Exhausted(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Second, 1)
	calls := 0
	err := p.Do(t.Context(), noSleep, func(int) error { calls++; return errors.New("down") }, nil, nil)
	require.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestDo_NotRetryable(t *testing.T) {
	p := DefaultPolicy()
	calls := 0
	err := p.Do(t.Context(), noSleep, func(int) error { calls++; return errors.New("bad token") },
		func(error) bool { return false }, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := DefaultPolicy().Do(ctx, nil, func(int) error { return errors.New("down") }, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
