package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var (
	fail = func(context.Context) error { return errors.New("provider down") }
	ok   = func(context.Context) error { return nil }
)

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	var transitions []State
	cb := New("sendgrid",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithTimeout(30*time.Second),
		WithClock(c.now),
		WithOnStateChange(func(name string, from, to State) { transitions = append(transitions, to) }),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.True(t, cb.IsClosed())
	_ = cb.Execute(ctx, fail)
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	c.t = c.t.Add(30 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.True(t, cb.IsClosed())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
	counts := cb.Counts()
	assert.Equal(t, 4, counts.Requests)
	assert.Equal(t, 1, counts.Rejected)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	cb := New("sendgrid", WithFailureThreshold(1), WithTimeout(time.Minute), WithClock(c.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	c.t = c.t.Add(time.Minute)
	_ = cb.Execute(ctx, fail)
	assert.True(t, cb.IsOpen())

	// The open period restarts from the failed probe.
	c.t = c.t.Add(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_HalfOpenAllowsLimitedProbes(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	cb := New("sendgrid", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(c.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	c.t = c.t.Add(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// A second call while the probe is running is turned away.
		assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
}

func TestBreaker_IsFailureFiltersErrors(t *testing.T) {
	permanent := errors.New("bad address")
	cb := New("sendgrid",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, permanent) }),
	)

	err := cb.Execute(context.Background(), func(context.Context) error { return permanent })
	assert.ErrorIs(t, err, permanent)
	assert.True(t, cb.IsClosed())
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("sendgrid", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}
