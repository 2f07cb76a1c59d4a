package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/debounce"
	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/filter"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/recorder"
	"github.com/ayusman/lookout/internal/store"
)

// SessionOptions configures StartSession. A nil Calibration uses the active one.
type SessionOptions struct {
	Mode        string
	Calibration *calibration.Calibration
}

// session is the state of one recording. Fields above mu are fixed at start;
// the rest are shared between the loop and StopSession and guarded by mu.
type session struct {
	meta  gaze.SessionMeta
	start time.Time
	rec   *recorder.Session
	cal   *calibration.Calibration
	ema   *filter.EMA

	stop chan struct{}
	done chan struct{}

	mu        sync.Mutex
	machine   *debounce.Machine
	samples   []gaze.Sample
	closed    bool
	loopErr   error
	lostSince time.Duration
	lost      bool
	paused    bool
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess != nil
}

// StartSession opens a session directory, writes its metadata and starts the
// pipeline loop.
func (a *App) StartSession(opts SessionOptions) (gaze.SessionMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sess != nil {
		return gaze.SessionMeta{}, ErrSessionRunning
	}
	if a.calibrating {
		return gaze.SessionMeta{}, ErrCalibrating
	}

	cal := opts.Calibration
	if cal == nil {
		cal = a.cal
	}
	if !cal.Valid() {
		return gaze.SessionMeta{}, ErrNotCalibrated
	}

	mode := opts.Mode
	if mode == "" {
		mode = DefaultMode
	}

	ema, err := filter.NewEMA(a.cfg.EMAAlpha)
	if err != nil {
		return gaze.SessionMeta{}, err
	}
	fp, err := cal.Fingerprint()
	if err != nil {
		return gaze.SessionMeta{}, fmt.Errorf("fingerprint calibration: %w", err)
	}

	started := time.Now()
	rec, err := recorder.CreateUnique(a.cfg.RunsDir(), recorder.SessionID(started, mode))
	if err != nil {
		return gaze.SessionMeta{}, err
	}
	id := filepath.Base(rec.Dir())

	meta := gaze.SessionMeta{
		SessionID:       id,
		RunID:           uuid.NewString(),
		Mode:            mode,
		StartedAt:       started,
		CameraIndex:     a.cfg.CameraIndex,
		CalibrationHash: fp,
		ProfileName:     cal.ProfileName,
	}
	if sz, ok := a.frames.(sized); ok {
		meta.CameraWidth, meta.CameraHeight = sz.Width(), sz.Height()
	}

	if err := rec.WriteMeta(meta); err != nil {
		rec.Close()
		return gaze.SessionMeta{}, fmt.Errorf("write session metadata: %w", err)
	}

	if a.store != nil {
		row := &store.Session{
			ID:              id,
			RunID:           meta.RunID,
			Mode:            mode,
			ProfileName:     meta.ProfileName,
			CalibrationHash: fp,
			Dir:             rec.Dir(),
			StartedAt:       started,
		}
		if err := a.store.Sessions().Create(row); err != nil {
			log.Warn("failed to catalog session", "session", id, "error", err)
		}
	}

	machine := debounce.NewMs(a.cfg.StableMs)
	machine.Reset(0)

	s := &session{
		meta:    meta,
		start:   started,
		rec:     rec,
		cal:     cal,
		ema:     ema,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		machine: machine,
	}
	a.sess = s
	a.metrics.SetSessionActive(true)

	go a.runPipeline(s)

	log.Info("session started", "session", id, "mode", mode, "profile", meta.ProfileName, "dir", rec.Dir())
	return meta, nil
}

// StopSession stops the loop, closes the final segment and writes the debrief.
func (a *App) StopSession() (*debrief.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.sess
	if s == nil {
		return nil, ErrNoSession
	}
	a.sess = nil

	close(s.stop)
	timeout := time.Duration(a.cfg.StopTimeout)
	select {
	case <-s.done:
	case <-time.After(timeout):
		log.Warn("pipeline loop did not stop in time", "session", s.meta.SessionID, "timeout", timeout)
	}

	ended := time.Now()
	duration := ended.Sub(s.start)

	s.mu.Lock()
	s.closed = true
	last := s.machine.ForceEndSegment(duration)
	events := s.machine.Events()
	samples := s.samples
	s.mu.Unlock()

	if last != nil {
		a.recordEvent(s, *last)
	}

	var errs []error
	s.meta.EndedAt = &ended
	if err := s.rec.WriteMeta(s.meta); err != nil {
		errs = append(errs, fmt.Errorf("write session metadata: %w", err))
	}

	summary := debrief.Compute(samples, events, duration)
	if err := s.rec.WriteDebrief(summary); err != nil {
		log.Warn("failed to write debrief", "session", s.meta.SessionID, "error", err)
	}
	if err := s.rec.Close(); err != nil {
		log.Warn("failed to close session logs", "session", s.meta.SessionID, "error", err)
	}

	if a.store != nil {
		payload, err := json.Marshal(summary)
		if err != nil {
			log.Warn("failed to encode debrief", "error", err)
		}
		if err := a.store.Sessions().Finish(s.meta.SessionID, ended, summary.TotalDurationS, summary.OutGlances, payload); err != nil {
			log.Warn("failed to finish catalog session", "session", s.meta.SessionID, "error", err)
		}
	}

	a.publisher.PublishDebrief(s.meta.SessionID, summary)
	a.metrics.SetSessionActive(false)
	a.last = &summary

	log.Info("session stopped",
		"session", s.meta.SessionID,
		"duration_s", summary.TotalDurationS,
		"samples", summary.TotalSamples,
		"out_glances", summary.OutGlances,
	)
	return &summary, errors.Join(errs...)
}

// AddMarker records a manual annotation in the running session.
func (a *App) AddMarker(label string) (gaze.Marker, error) {
	a.mu.Lock()
	s := a.sess
	a.mu.Unlock()

	if s == nil {
		return gaze.Marker{}, ErrNoSession
	}
	if label == "" {
		label = "marker"
	}

	now := time.Now()
	m := gaze.Marker{Mono: now.Sub(s.start), Wall: now, Label: label}
	if err := s.rec.WriteMarker(m); err != nil {
		return m, fmt.Errorf("write marker: %w", err)
	}
	log.Debug("marker written", "session", s.meta.SessionID, "label", label)
	return m, nil
}

// recordEvent writes a closed segment and fans it out.
func (a *App) recordEvent(s *session, ev gaze.TransitionEvent) {
	if err := s.rec.WriteEvent(ev); err != nil {
		log.Warn("failed to write event", "session", s.meta.SessionID, "error", err)
	}
	a.metrics.Transition(ev)
	a.publisher.PublishTransition(s.meta.SessionID, ev)
}
