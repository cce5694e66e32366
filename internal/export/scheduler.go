package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/technosupport/protect-dl/internal/platform/paths"
	"github.com/technosupport/protect-dl/internal/protect"
)

var ErrInvalidRange = errors.New("start time must be before end time")

const filePerm = 0644

// Exporter issues one export request. *protect.Client implements it.
type Exporter interface {
	ExportVideo(ctx context.Context, cameraID string, start, end time.Time) (protect.ExportResult, error)
}

// Recorder observes window outcomes. *metrics.Downloads implements it.
type Recorder interface {
	WindowDone(camera, result string)
	Transferred(camera string, n int64, elapsed time.Duration)
}

// Outcome is what happened to one window.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeExisting   Outcome = "existing"
	OutcomeNoData     Outcome = "no_data"
	OutcomeFailed     Outcome = "failed"
)

// Config places a Scheduler's output on disk.
type Config struct {
	OutputRoot string
	// Location drives the calendar used in directory and file names.
	// Defaults to time.Local.
	Location  *time.Location
	Extension string
	Recorder  Recorder
}

// WindowError aborts the remaining windows of a camera.
type WindowError struct {
	Camera string
	Start  time.Time
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("camera %s window %s: %v", e.Camera, e.Start.Format("2006-01-02 15:04"), e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// Summary counts what happened to the windows of one or more cameras.
type Summary struct {
	Windows    int
	Downloaded int
	Existing   int
	NoData     int
	Failed     int
	Bytes      int64
}

// Merge adds o's counters to s.
func (s *Summary) Merge(o Summary) {
	s.Windows += o.Windows
	s.Downloaded += o.Downloaded
	s.Existing += o.Existing
	s.NoData += o.NoData
	s.Failed += o.Failed
	s.Bytes += o.Bytes
}

func (s *Summary) add(o Outcome, n int64) {
	s.Windows++
	switch o {
	case OutcomeDownloaded:
		s.Downloaded++
		s.Bytes += n
	case OutcomeExisting:
		s.Existing++
	case OutcomeNoData:
		s.NoData++
	case OutcomeFailed:
		s.Failed++
	}
}

// Scheduler downloads a camera's footage one window at a time.
type Scheduler struct {
	cfg      Config
	exporter Exporter
	pacer    *Pacer
	log      *zap.SugaredLogger
}

// NewScheduler fills in defaults for cfg. A nil pacer never waits and a nil
// logger discards output. Share one pacer between schedulers to pace a whole run.
func NewScheduler(cfg Config, exporter Exporter, pacer *Pacer, logger *zap.SugaredLogger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cfg.OutputRoot = paths.ResolveOutputRoot(cfg.OutputRoot)
	if cfg.Extension == "" {
		cfg.Extension = paths.DefaultExtension
	}
	if pacer == nil {
		pacer = NewPacer(0, nil)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		cfg:      cfg,
		exporter: exporter,
		pacer:    pacer,
		log:      logger,
	}
}

// Run walks [start, end) in hourly windows for cam. Windows whose file already
// exists are skipped, windows the console has no footage for are logged and
// skipped, and local write failures only lose their own window. A failure
// status from the console or a transport error stops the camera and is
// returned as a *WindowError.
func (s *Scheduler) Run(ctx context.Context, cam protect.Camera, start, end time.Time) (Summary, error) {
	var sum Summary
	if !end.After(start) {
		return sum, ErrInvalidRange
	}

	for _, w := range Windows(start, end) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		outcome, n, err := s.runWindow(ctx, cam, w)
		if outcome != "" {
			sum.add(outcome, n)
			if s.cfg.Recorder != nil {
				s.cfg.Recorder.WindowDone(cam.Name, string(outcome))
			}
		}
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s *Scheduler) runWindow(ctx context.Context, cam protect.Camera, w Window) (Outcome, int64, error) {
	local := w.Start.In(s.cfg.Location)

	path, err := paths.ChunkPath(s.cfg.OutputRoot, local, cam.Name, s.cfg.Extension)
	if err != nil {
		s.log.Errorf("Cannot place %s at %s: %v", cam.Name, local.Format("2006-01-02 15:04"), err)
		return OutcomeFailed, 0, nil
	}
	if err := paths.EnsureDir(filepath.Dir(path)); err != nil {
		s.log.Error(err)
		return OutcomeFailed, 0, nil
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		s.log.Infof("File already exists: %s", path)
		return OutcomeExisting, 0, nil
	case !errors.Is(err, fs.ErrNotExist):
		s.log.Errorf("Cannot check %s: %v", path, err)
		return OutcomeFailed, 0, nil
	}

	return s.download(ctx, cam, w, path)
}

func (s *Scheduler) download(ctx context.Context, cam protect.Camera, w Window, path string) (Outcome, int64, error) {
	if slept, err := s.pacer.Wait(ctx); err != nil {
		return "", 0, err
	} else if slept > 0 {
		s.log.Debugf("Paced %s before next request", slept)
	}

	clock := s.pacer.Clock()
	began := clock.Now()
	local := w.Start.In(s.cfg.Location)

	s.log.Debugw("export request", "camera", cam.Name, "id", cam.ID, "start", w.Start, "end", w.End)
	res, err := s.exporter.ExportVideo(ctx, cam.ID, w.Start, w.End)
	if err != nil {
		return OutcomeFailed, 0, &WindowError{Camera: cam.Name, Start: local, Err: err}
	}

	switch res.Outcome {
	case protect.ExportNoData:
		s.log.Infof("No data for %s at %s", cam.Name, local.Format("2006-01-02 15:04"))
		return OutcomeNoData, 0, nil
	case protect.ExportFailed:
		return OutcomeFailed, 0, &WindowError{
			Camera: cam.Name,
			Start:  local,
			Err:    &protect.APIError{Op: "export", StatusCode: res.StatusCode, Body: res.Message},
		}
	}

	body := res.Body
	if body == nil {
		body = http.NoBody
	}
	n, err := writeExclusive(path, body)
	if err != nil {
		s.log.Errorf("Failed to save %s: %v", path, err)
		return OutcomeFailed, 0, nil
	}

	s.pacer.Done()
	elapsed := clock.Now().Sub(began)
	s.log.Infof("Downloaded %s (%s) in %d seconds", path, humanize.IBytes(uint64(n)), int(elapsed.Seconds()))
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Transferred(cam.Name, n, elapsed)
	}
	return OutcomeDownloaded, n, nil
}

// writeExclusive streams body into a file that must not exist yet. A file
// left half-written by this call is removed so the window is retried on the
// next run; a file created by someone else is left alone.
func writeExclusive(path string, body io.ReadCloser) (int64, error) {
	defer body.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, err
	}
	return n, nil
}
