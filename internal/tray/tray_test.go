package tray

import (
	"errors"
	"testing"

	"github.com/ayusman/lookout/internal/gaze"
)

func TestTray_Toggle(t *testing.T) {
	tr := New()

	var calls []bool
	tr.OnToggle(func(recording bool) error {
		calls = append(calls, recording)
		return nil
	})

	tr.handleToggle()
	if !tr.Recording() {
		t.Error("Recording() = false after first toggle")
	}
	tr.handleToggle()
	if tr.Recording() {
		t.Error("Recording() = true after second toggle")
	}
	if len(calls) != 2 || calls[0] != true || calls[1] != false {
		t.Errorf("toggle callbacks = %v", calls)
	}
}

func TestTray_ToggleErrorKeepsState(t *testing.T) {
	tr := New()
	tr.OnToggle(func(bool) error { return errors.New("not calibrated") })

	tr.handleToggle()
	if tr.Recording() {
		t.Error("failed start should leave the tray idle")
	}
}

func TestTray_MarkerOnlyWhileRecording(t *testing.T) {
	tr := New()
	n := 0
	tr.OnMarker(func() { n++ })

	tr.handleMarker()
	tr.SetRecording(true)
	tr.handleMarker()

	if n != 1 {
		t.Errorf("marker callbacks = %d, want 1", n)
	}
}

func TestTray_StatusLine(t *testing.T) {
	tr := New()
	if got := tr.StatusLine(); got != "Idle" {
		t.Errorf("StatusLine() = %q", got)
	}

	tr.SetRecording(true)
	tr.SetState(gaze.OutOfArea)
	if got := tr.StatusLine(); got != "State: OUT_OF_AREA" {
		t.Errorf("StatusLine() = %q", got)
	}

	tr.SetPaused(true)
	if got := tr.StatusLine(); got != "Paused: no face" {
		t.Errorf("StatusLine() = %q", got)
	}

	tr.SetRecording(false)
	if got := tr.StatusLine(); got != "Idle" {
		t.Errorf("StatusLine() after stop = %q", got)
	}
}
