package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/recorder"
)

// writeSession records a 3s session with one 1s look away.
func writeSession(t *testing.T, withDebrief bool) string {
	t.Helper()
	dir := t.TempDir()

	rec, err := recorder.Create(dir)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		mono := time.Duration(i) * 100 * time.Millisecond
		state := gaze.InArea
		if i >= 10 && i < 20 {
			state = gaze.OutOfArea
		}
		rec.WriteSample(gaze.Sample{Mono: mono, Wall: start.Add(mono), X: 0.5, Y: 0.5, Confidence: 0.9, State: state})
	}
	events := []gaze.TransitionEvent{
		{From: gaze.InArea, To: gaze.OutOfArea, Start: 0, End: time.Second},
		{From: gaze.OutOfArea, To: gaze.InArea, Start: time.Second, End: 2 * time.Second},
		{From: gaze.InArea, To: gaze.InArea, Start: 2 * time.Second, End: 3 * time.Second},
	}
	for _, ev := range events {
		rec.WriteEvent(ev)
	}
	end := start.Add(3 * time.Second)
	rec.WriteMeta(gaze.SessionMeta{SessionID: "s1", Mode: "flight", StartedAt: start, EndedAt: &end})
	if withDebrief {
		rec.WriteDebrief(debrief.Summary{TotalDurationS: 99, OutGlances: 7})
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return dir
}

func TestLoadSummary_PrefersStoredDebrief(t *testing.T) {
	dir := writeSession(t, true)

	s, err := loadSummary(dir, false)
	if err != nil {
		t.Fatalf("loadSummary() error = %v", err)
	}
	if s.OutGlances != 7 || s.TotalDurationS != 99 {
		t.Errorf("summary = %+v, want the stored debrief", s)
	}
}

func TestLoadSummary_RecomputesFromLogs(t *testing.T) {
	for _, tc := range []struct {
		name        string
		withDebrief bool
		recompute   bool
	}{
		{"missing debrief", false, false},
		{"forced", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeSession(t, tc.withDebrief)

			s, err := loadSummary(dir, tc.recompute)
			if err != nil {
				t.Fatalf("loadSummary() error = %v", err)
			}
			if s.TotalSamples != 30 {
				t.Errorf("TotalSamples = %d, want 30", s.TotalSamples)
			}
			if s.OutGlances != 1 {
				t.Errorf("OutGlances = %d, want 1", s.OutGlances)
			}
			if s.TotalDurationS != 3 {
				t.Errorf("TotalDurationS = %v, want 3", s.TotalDurationS)
			}
			if s.InAreaS != 2 || s.OutOfAreaS != 1 {
				t.Errorf("in/out = %v/%v, want 2/1", s.InAreaS, s.OutOfAreaS)
			}
		})
	}
}

func TestLoadSummary_MissingDir(t *testing.T) {
	if _, err := loadSummary(t.TempDir()+"/nope", false); err == nil {
		t.Error("loadSummary() on a missing directory should fail")
	}
}

func TestDebriefCommand_JSON(t *testing.T) {
	dir := writeSession(t, false)

	var out bytes.Buffer
	debriefCmd.SetOut(&out)
	defer debriefCmd.SetOut(nil)
	debriefCmd.Flags().Set("json", "true")
	defer debriefCmd.Flags().Set("json", "false")

	if err := runDebrief(debriefCmd, []string{dir}); err != nil {
		t.Fatalf("runDebrief() error = %v", err)
	}

	var s debrief.Summary
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if s.OutGlances != 1 {
		t.Errorf("OutGlances = %d, want 1", s.OutGlances)
	}
}

func TestDebriefCommand_RawMarkdown(t *testing.T) {
	dir := writeSession(t, false)

	var out bytes.Buffer
	debriefCmd.SetOut(&out)
	defer debriefCmd.SetOut(nil)
	debriefCmd.Flags().Set("raw", "true")
	defer debriefCmd.Flags().Set("raw", "false")

	if err := runDebrief(debriefCmd, []string{dir}); err != nil {
		t.Fatalf("runDebrief() error = %v", err)
	}
	if !strings.Contains(out.String(), "#") {
		t.Errorf("raw output has no markdown heading:\n%s", out.String())
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/"},
	}
	for _, tt := range tests {
		if got := dashboardURL(tt.addr); got != tt.want {
			t.Errorf("dashboardURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
