package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, reset time.Duration) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	b.nowFunc = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	boom := eris.New("submit failed")

	for i := 0; i < 3; i++ {
		err := b.Execute(context.Background(), func(ctx context.Context) error { return boom })
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, b.State())

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, eris.Is(err, ErrBreakerOpen))
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	boom := eris.New("boom")

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return boom })
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return boom })
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return boom })

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	assert.Equal(t, BreakerOpen, b.State())

	*now = now.Add(31 * time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	*now = now.Add(31 * time.Second)

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("still down") })
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_ShouldTripFilter(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	b.cfg.ShouldTrip = IsTransient

	// Permanent errors don't trip the breaker.
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("422 validation") })
	assert.Equal(t, BreakerClosed, b.State())

	_ = b.Execute(context.Background(), func(ctx context.Context) error {
		return NewTransientError(eris.New("503"), 503)
	})
	assert.Equal(t, BreakerOpen, b.State())
}

func TestExecuteVal_RejectsWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })

	called := false
	_, err := ExecuteVal(context.Background(), b, func(ctx context.Context) (string, error) {
		called = true
		return "x", nil
	})
	assert.True(t, eris.Is(err, ErrBreakerOpen))
	assert.False(t, called)
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	require.Equal(t, BreakerOpen, b.State())

	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
}
