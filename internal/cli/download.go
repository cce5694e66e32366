package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/technosupport/protect-dl/internal/config"
	"github.com/technosupport/protect-dl/internal/export"
	"github.com/technosupport/protect-dl/internal/metrics"
	"github.com/technosupport/protect-dl/internal/platform/paths"
	"github.com/technosupport/protect-dl/internal/protect"
)

type downloadOptions struct {
	start   string
	end     string
	cameras []string
}

func newDownloadCommand(a *app) *cobra.Command {
	opts := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download footage for a time range in hourly chunks",
		Long: `Download footage between --start and --end for the selected cameras.

Each camera is fetched one hour at a time into
  <output>/<yyyy>/<MM>/<dd>/<yyyy-MM-dd_HH-mm>_<camera>.mp4
Chunks already on disk are skipped, so an interrupted run can simply be
started again.`,
		Example: `  protect-dl download --start 2024-01-01T00:00 --end 2024-01-02T00:00
  protect-dl download --start 2024-01-01 --end 2024-01-08 --camera "Front Door" --camera Garage --output /srv/footage`,
		Args:    cobra.NoArgs,
		PreRunE: a.requireConsole,
		RunE:    func(cmd *cobra.Command, args []string) error {
			return a.download(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "start of the range (RFC3339, 2006-01-02T15:04 or 2006-01-02)")
	f.StringVar(&opts.end, "end", "", "end of the range, exclusive")
	f.StringSliceVar(&opts.cameras, "camera", nil, "camera name to download, repeatable or comma-separated (default all)")
	f.String("output", paths.DefaultOutputRoot, "directory to write footage into")
	f.Int("delay", config.DefaultDelay, "minimum seconds between downloads")
	f.String("metrics-file", "", "write Prometheus metrics to this file when the run ends")
	f.String("timezone", "", "IANA zone for parsing times and naming files (default local)")
	_ = a.v.BindPFlag(config.KeyOutput, f.Lookup("output"))
	_ = a.v.BindPFlag(config.KeyDelay, f.Lookup("delay"))
	_ = a.v.BindPFlag(config.KeyMetricsFile, f.Lookup("metrics-file"))
	_ = a.v.BindPFlag(config.KeyTimezone, f.Lookup("timezone"))
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func (a *app) download(ctx context.Context, opts *downloadOptions) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	start, err := config.ParseTime(opts.start, loc)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := config.ParseTime(opts.end, loc)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w (start %s, end %s)", export.ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	runID := uuid.NewString()
	log := a.log.With("run", runID)

	root := paths.ResolveOutputRoot(a.cfg.Output)
	if err := paths.EnsureDir(root); err != nil {
		return err
	}
	if free, err := paths.FreeBytes(root); err == nil {
		log.Infof("Saving to %s (%s free)", root, humanize.IBytes(free))
	} else {
		log.Debugf("Cannot read free space of %s: %v", root, err)
	}

	client, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if exp, ok := client.SessionExpiry(); ok {
		log.Debugf("Session valid until %s", exp.Format(time.RFC3339))
		if estimate := estimateRun(start, end, a.cfg.MinDelay()); time.Now().Add(estimate).After(exp) {
			log.Warnf("Session expires at %s, the run may take longer than that", exp.Local().Format("2006-01-02 15:04"))
		}
	}

	all, err := client.ListCameras(ctx)
	if err != nil {
		return err
	}
	selected := protect.SelectCameras(all, opts.cameras)
	if len(selected) == 0 {
		log.Warn("No cameras to download")
	}

	recorder := metrics.NewDownloads()
	pacer := export.NewPacer(a.cfg.MinDelay(), export.SystemClock)
	sched := export.NewScheduler(export.Config{
		OutputRoot: root,
		Location:   loc,
		Recorder:   recorder,
	}, client, pacer, log)

	var total export.Summary
	began := time.Now()
	for _, cam := range selected {
		log.Infof("Downloading %s from %s to %s", cam.Name,
			start.In(loc).Format("2006-01-02 15:04"), end.In(loc).Format("2006-01-02 15:04"))

		sum, runErr := sched.Run(ctx, cam, start, end)
		total.Merge(sum)
		if runErr != nil {
			err = runErr
			break
		}
	}

	log.Infof("Finished in %s: %d windows, %d downloaded (%s), %d already present, %d without footage, %d failed",
		time.Since(began).Round(time.Second), total.Windows, total.Downloaded,
		humanize.IBytes(uint64(total.Bytes)), total.Existing, total.NoData, total.Failed)

	if a.cfg.MetricsFile != "" {
		if werr := recorder.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			log.Errorf("Cannot write metrics: %v", werr)
		}
	}

	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

// estimateRun is a lower bound on how long a range takes: one paced request
// per window.
func estimateRun(start, end time.Time, minDelay time.Duration) time.Duration {
	return time.Duration(len(export.Windows(start, end))) * minDelay
}
