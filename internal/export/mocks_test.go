package export

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/technosupport/protect-dl/internal/protect"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportVideo(ctx context.Context, cameraID string, start, end time.Time) (protect.ExportResult, error) {
	args := m.Called(ctx, cameraID, start, end)
	if fn, ok := args.Get(0).(func(context.Context, string, time.Time, time.Time) protect.ExportResult); ok {
		return fn(ctx, cameraID, start, end), args.Error(1)
	}
	return args.Get(0).(protect.ExportResult), args.Error(1)
}

type fakeRecorder struct {
	windows map[string]int
	bytes   int64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{windows: map[string]int{}}
}

func (r *fakeRecorder) WindowDone(camera, result string) {
	r.windows[camera+"/"+result]++
}

func (r *fakeRecorder) Transferred(camera string, n int64, elapsed time.Duration) {
	r.bytes += n
}

// brokenBody yields a few bytes then fails, like a connection reset mid-transfer.
type brokenBody struct {
	sent bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func (b *brokenBody) Close() error { return nil }

var _ io.ReadCloser = (*brokenBody)(nil)
