// Package telemetry exposes pipeline counters and latencies as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	FramesProcessed prometheus.Counter
	FramesSkipped   prometheus.Counter
	ResultsDropped  prometheus.Counter
	Transitions     *prometheus.CounterVec
	GlanceDuration  prometheus.Histogram
	LoopLatency     prometheus.Histogram
	AutoPauses      prometheus.Counter
	SessionActive   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookout_frames_processed_total",
			Help: "Frames classified by the pipeline loop",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookout_frames_skipped_total",
			Help: "Loop iterations with no frame available",
		}),
		ResultsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookout_results_dropped_total",
			Help: "Results discarded because the consumer queue was full",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_state_transitions_total",
			Help: "Committed gaze state transitions by target state",
		}, []string{"from", "to"}),
		GlanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lookout_out_glance_seconds",
			Help:    "Duration of closed out-of-area segments",
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 30},
		}),
		LoopLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lookout_loop_latency_seconds",
			Help:    "Time spent processing one frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		AutoPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookout_auto_pauses_total",
			Help: "Times the session was auto-paused for lack of a face",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lookout_session_active",
			Help: "1 while a session is recording",
		}),
	}

	reg.MustRegister(
		m.FramesProcessed,
		m.FramesSkipped,
		m.ResultsDropped,
		m.Transitions,
		m.GlanceDuration,
		m.LoopLatency,
		m.AutoPauses,
		m.SessionActive,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// FrameProcessed records one classified frame and its processing time.
func (m *Metrics) FrameProcessed(took time.Duration) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.LoopLatency.Observe(took.Seconds())
}

// FrameSkipped records an iteration without a frame.
func (m *Metrics) FrameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Inc()
}

// ResultDropped records a result lost to a full queue.
func (m *Metrics) ResultDropped() {
	if m == nil {
		return
	}
	m.ResultsDropped.Inc()
}

// Transition records a closed segment.
func (m *Metrics) Transition(ev gaze.TransitionEvent) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
	if ev.From == gaze.OutOfArea {
		m.GlanceDuration.Observe(ev.Duration().Seconds())
	}
}

// AutoPaused records an auto-pause edge.
func (m *Metrics) AutoPaused() {
	if m == nil {
		return
	}
	m.AutoPauses.Inc()
}

// SetSessionActive toggles the session gauge.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}
