package export

import (
	"context"
	"time"
)

// Clock is the time source used for pacing and transfer timing.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Pacer enforces a minimum gap between the completion of one download and the
// start of the next. One Pacer is shared by every camera of a run.
type Pacer struct {
	clock    Clock
	minDelay time.Duration
	last     time.Time
}

// NewPacer returns a pacer that has not seen a download yet. A nil clock
// means SystemClock.
func NewPacer(minDelay time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = SystemClock
	}
	return &Pacer{clock: clock, minDelay: minDelay}
}

// Wait blocks until minDelay has passed since the last completed download.
// The remaining time is truncated to whole seconds. Returns how long it slept.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	if p.last.IsZero() || p.minDelay <= 0 {
		return 0, nil
	}
	elapsed := p.clock.Now().Sub(p.last)
	if elapsed >= p.minDelay {
		return 0, nil
	}
	wait := (p.minDelay - elapsed).Truncate(time.Second)
	if wait <= 0 {
		return 0, nil
	}
	if err := p.clock.Sleep(ctx, wait); err != nil {
		return 0, err
	}
	return wait, nil
}

// Done marks a download as completed now.
func (p *Pacer) Done() {
	p.last = p.clock.Now()
}

func (p *Pacer) Clock() Clock {
	return p.clock
}
