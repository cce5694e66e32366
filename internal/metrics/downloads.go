package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Downloads accumulates the outcome of one download run. It owns a private
// registry so a run never mixes with the default global one.
type Downloads struct {
	registry *prometheus.Registry

	windows      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	transferTime *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
}

func NewDownloads() *Downloads {
	reg := prometheus.NewRegistry()

	d := &Downloads{registry: reg}

	d.windows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protect_dl_windows_total",
		Help: "Export windows processed, by camera and result",
	}, []string{"camera", "result"})
	reg.MustRegister(d.windows)

	d.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protect_dl_bytes_total",
		Help: "Video bytes written to disk",
	}, []string{"camera"})
	reg.MustRegister(d.bytes)

	d.transferTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protect_dl_transfer_seconds",
		Help:    "Wall-clock time to stream one window to disk",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"camera"})
	reg.MustRegister(d.transferTime)

	d.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "protect_dl_last_success_timestamp_seconds",
		Help: "Unix time of the last completed window download",
	}, []string{"camera"})
	reg.MustRegister(d.lastSuccess)

	return d
}

// WindowDone counts one processed window.
func (d *Downloads) WindowDone(camera, result string) {
	d.windows.WithLabelValues(camera, result).Inc()
}

// Transferred records a completed window download.
func (d *Downloads) Transferred(camera string, n int64, elapsed time.Duration) {
	d.bytes.WithLabelValues(camera).Add(float64(n))
	d.transferTime.WithLabelValues(camera).Observe(elapsed.Seconds())
	d.lastSuccess.WithLabelValues(camera).SetToCurrentTime()
}

// Registry exposes the run's collectors for gathering.
func (d *Downloads) Registry() *prometheus.Registry {
	return d.registry
}

// WriteTextfile writes the current values in the text exposition format, for
// pickup by the node_exporter textfile collector. The write is atomic.
func (d *Downloads) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, d.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
