package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FrameProcessed(5 * time.Millisecond)
	m.FrameProcessed(7 * time.Millisecond)
	m.FrameSkipped()
	m.ResultDropped()
	m.AutoPaused()
	m.SetSessionActive(true)
	m.Transition(gaze.TransitionEvent{From: gaze.InArea, To: gaze.OutOfArea, Start: 0, End: time.Second})
	m.Transition(gaze.TransitionEvent{From: gaze.OutOfArea, To: gaze.InArea, Start: time.Second, End: 3 * time.Second})

	if got := testutil.ToFloat64(m.FramesProcessed); got != 2 {
		t.Errorf("frames processed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FramesSkipped); got != 1 {
		t.Errorf("frames skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ResultsDropped); got != 1 {
		t.Errorf("results dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("IN_AREA", "OUT_OF_AREA")); got != 1 {
		t.Errorf("IN->OUT transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionActive); got != 1 {
		t.Errorf("session gauge = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.GlanceDuration); got != 1 {
		t.Errorf("glance histogram series = %d, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.FrameProcessed(time.Millisecond)
	m.FrameSkipped()
	m.ResultDropped()
	m.AutoPaused()
	m.SetSessionActive(true)
	m.Transition(gaze.TransitionEvent{From: gaze.OutOfArea, To: gaze.InArea})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.FrameSkipped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lookout_frames_skipped_total 1") {
		t.Errorf("exposition missing skipped counter:\n%s", rec.Body.String())
	}
}
