package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_FirstDownloadDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	p := NewPacer(2*time.Second, clock)

	slept, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Zero(t, slept)
	assert.Empty(t, clock.Sleeps())
}

func TestPacer_WaitsRemainingWholeSeconds(t *testing.T) {
	cases := []struct {
		name    string
		delay   time.Duration
		elapsed time.Duration
		want    time.Duration
	}{
		{"immediately after", 2 * time.Second, 0, 2 * time.Second},
		{"half second in", 2 * time.Second, 500 * time.Millisecond, time.Second},
		{"just under a second left", 2 * time.Second, 1100 * time.Millisecond, 0},
		{"delay passed", 2 * time.Second, 3 * time.Second, 0},
		{"exactly the delay", 5 * time.Second, 5 * time.Second, 0},
		{"long delay", 10 * time.Second, 2500 * time.Millisecond, 7 * time.Second},
		{"no delay", 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			p := NewPacer(tc.delay, clock)
			p.Done()
			clock.Advance(tc.elapsed)

			slept, err := p.Wait(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, slept)
		})
	}
}

func TestPacer_WaitHonoursCancellation(t *testing.T) {
	p := NewPacer(time.Hour, SystemClock)
	p.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystemClock_Sleep(t *testing.T) {
	began := time.Now()
	require.NoError(t, SystemClock.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(began), 20*time.Millisecond)
}
