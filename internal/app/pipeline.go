package app

import (
	"fmt"
	"time"

	"github.com/ayusman/lookout/internal/face"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
)

// Placeholder gaze reported for frames without a usable face.
const (
	noFaceX = 0.5
	noFaceY = 0.5
)

// runPipeline is the session loop. It ticks at the configured frame rate and
// processes the latest available frame on each tick. Late ticks are dropped by
// the ticker. A prediction error ends the loop; the session stays open until
// StopSession.
func (a *App) runPipeline(s *session) {
	defer close(s.done)

	ticker := time.NewTicker(a.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := a.step(s); err != nil {
				s.mu.Lock()
				s.loopErr = err
				s.mu.Unlock()
				log.Error("pipeline loop ended", "session", s.meta.SessionID, "error", err)
				return
			}
		}
	}
}

// step processes one frame.
func (a *App) step(s *session) error {
	f, ok := a.frames.Latest()
	if !ok {
		a.metrics.FrameSkipped()
		return nil
	}

	began := time.Now()
	mono := began.Sub(s.start)

	fc, err := a.tracker.Process(f)
	if err != nil {
		log.Debug("tracker failed", "error", err)
		fc = nil
	}
	detected := fc != nil && fc.Confidence >= a.cfg.MinConfidence

	result := gaze.Result{FaceDetected: detected}
	x, y, conf := noFaceX, noFaceY, 0.0
	raw := gaze.Unknown

	if detected {
		px, py, err := s.cal.Model.Predict(face.Features(fc))
		if err != nil {
			return fmt.Errorf("predict gaze: %w", err)
		}
		x, y = s.ema.Update(px, py)
		conf = fc.Confidence
		if s.cal.AOI.Contains(x, y) {
			raw = gaze.InArea
		} else {
			raw = gaze.OutOfArea
		}

		left, right := fc.LeftIris, fc.RightIris
		result.LeftIris, result.RightIris = &left, &right
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	pauseEdge, paused := s.trackPresence(detected, mono, a.cfg.AutoPause())
	committed, ev := s.machine.Update(raw, mono)
	sample := gaze.Sample{
		Mono:       mono,
		Wall:       began,
		X:          x,
		Y:          y,
		Confidence: conf,
		State:      committed,
	}
	s.samples = append(s.samples, sample)
	s.mu.Unlock()

	if pauseEdge {
		a.onPauseEdge(s, paused, mono)
	}
	if ev != nil {
		a.recordEvent(s, *ev)
	}
	if err := s.rec.WriteSample(sample); err != nil {
		log.Warn("failed to write sample", "session", s.meta.SessionID, "error", err)
	}

	result.Sample = sample
	result.AutoPaused = paused
	select {
	case a.results <- result:
	default:
		a.metrics.ResultDropped()
	}

	a.metrics.FrameProcessed(time.Since(began))
	return nil
}

// trackPresence updates the auto-pause timer. It reports whether the paused
// flag changed on this frame and its current value. Callers hold s.mu.
func (s *session) trackPresence(detected bool, now, after time.Duration) (edge, paused bool) {
	if detected {
		s.lost = false
		if s.paused {
			s.paused = false
			return true, false
		}
		return false, false
	}

	if !s.lost {
		s.lost = true
		s.lostSince = now
	}
	if !s.paused && now-s.lostSince >= after {
		s.paused = true
		return true, true
	}
	return false, s.paused
}

func (a *App) onPauseEdge(s *session, paused bool, at time.Duration) {
	if paused {
		a.metrics.AutoPaused()
		log.Info("session auto-paused", "session", s.meta.SessionID, "t_s", at.Seconds())
	} else {
		log.Info("session resumed", "session", s.meta.SessionID, "t_s", at.Seconds())
	}
	a.publisher.PublishPause(s.meta.SessionID, paused, at)
	a.firePause(paused)
}
