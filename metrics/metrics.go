// Package metrics holds the Prometheus performance counters of the host.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a set of collectors registered against one registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Frames counts emulated frames, labelled by mode ("normal", "batch").
	Frames *prometheus.CounterVec

	// FPS is the measured emulated frame rate.
	FPS prometheus.Gauge

	// Speed is emulation speed as a percentage of real time.
	Speed prometheus.Gauge

	// FrameTime observes host time spent per presented frame.
	FrameTime prometheus.Histogram

	// QueueDepth is the number of commands waiting for the simulation thread.
	QueueDepth prometheus.Gauge

	// Commands counts executed commands by how they ran ("queued", "inline").
	Commands *prometheus.CounterVec

	// BlockingWait observes how long blocking submitters waited.
	BlockingWait prometheus.Histogram

	// VibrationCalls counts host vibration calls by value ("on", "off").
	VibrationCalls *prometheus.CounterVec

	// Boots counts boot attempts by result ("ok", "error").
	Boots *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them process-wide, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emu_frames_total",
			Help: "Emulated frames",
		}, []string{"mode"}),
		FPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "emu_fps",
			Help: "Measured emulated frames per second",
		}),
		Speed: f.NewGauge(prometheus.GaugeOpts{
			Name: "emu_speed_percent",
			Help: "Emulation speed relative to real time",
		}),
		FrameTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "emu_frame_seconds",
			Help:    "Host time per presented frame",
			Buckets: []float64{0.002, 0.004, 0.008, 0.012, 0.016, 0.020, 0.033, 0.050, 0.100},
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "emu_command_queue_depth",
			Help: "Commands waiting for the simulation thread",
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emu_commands_total",
			Help: "Executed commands",
		}, []string{"path"}),
		BlockingWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "emu_blocking_submit_seconds",
			Help:    "Time blocking submitters waited for their command",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		VibrationCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emu_vibration_calls_total",
			Help: "Host vibration calls",
		}, []string{"value"}),
		Boots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emu_boots_total",
			Help: "Boot attempts",
		}, []string{"result"}),
	}
}

func (m *Metrics) FrameDone(batch bool, frames int, elapsed time.Duration) {
	if m == nil {
		return
	}
	mode := "normal"
	if batch {
		mode = "batch"
	}
	m.Frames.WithLabelValues(mode).Add(float64(frames))
	m.FrameTime.Observe(elapsed.Seconds())
}

func (m *Metrics) Performance(fps, speedPercent float64) {
	if m == nil {
		return
	}
	m.FPS.Set(fps)
	m.Speed.Set(speedPercent)
}

func (m *Metrics) Queued(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) CommandRan(inline bool) {
	if m == nil {
		return
	}
	path := "queued"
	if inline {
		path = "inline"
	}
	m.Commands.WithLabelValues(path).Inc()
}

func (m *Metrics) Waited(d time.Duration) {
	if m == nil {
		return
	}
	m.BlockingWait.Observe(d.Seconds())
}

func (m *Metrics) Vibration(on bool) {
	if m == nil {
		return
	}
	value := "off"
	if on {
		value = "on"
	}
	m.VibrationCalls.WithLabelValues(value).Inc()
}

func (m *Metrics) Boot(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Boots.WithLabelValues(result).Inc()
}
