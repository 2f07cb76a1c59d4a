// Package app orchestrates the gaze pipeline: it owns the tracker, the live
// calibration and the per-session smoother and state machine, and turns frames
// into recorded samples, events and a debrief.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/lookout/internal/aoi"
	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/config"
	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/face"
	"github.com/ayusman/lookout/internal/frame"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/publish"
	"github.com/ayusman/lookout/internal/store"
	"github.com/ayusman/lookout/internal/telemetry"
)

// ResultQueueSize is the capacity of the result channel. When it is full the
// newest result is dropped.
const ResultQueueSize = 5

// DefaultMode is used when a session is started without a mode.
const DefaultMode = "session"

var (
	// ErrNotCalibrated is returned when no fitted model with a usable AOI is available.
	ErrNotCalibrated = errors.New("not calibrated")
	// ErrSessionRunning is returned when a session is already active.
	ErrSessionRunning = errors.New("session already running")
	// ErrNoSession is returned when no session is active.
	ErrNoSession = errors.New("no session running")
	// ErrCalibrating is returned while a calibration run owns the tracker.
	ErrCalibrating = errors.New("calibration in progress")
	// ErrInvalidAOI is returned when a calibration is requested with fewer than three vertices.
	ErrInvalidAOI = errors.New("area of interest needs at least 3 vertices")
)

// Deps are the collaborators of an App. Frames and Tracker are required.
type Deps struct {
	Frames    frame.Source
	Tracker   face.Tracker
	Profiles  *profile.Store
	Store     *store.Store
	Metrics   *telemetry.Metrics
	Publisher publish.Publisher
}

// sized is implemented by frame sources that know their resolution.
type sized interface {
	Width() int
	Height() int
}

// App is the pipeline orchestrator.
type App struct {
	cfg     config.Config
	frames  frame.Source
	tracker face.Tracker

	profiles  *profile.Store
	store     *store.Store
	metrics   *telemetry.Metrics
	publisher publish.Publisher

	results chan gaze.Result

	mu          sync.Mutex
	cal         *calibration.Calibration
	sess        *session
	calibrating bool
	last        *debrief.Summary

	hmu          sync.RWMutex
	pauseHandler func(paused bool)
}

// New creates an App. It does not start anything.
func New(cfg config.Config, deps Deps) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Frames == nil || deps.Tracker == nil {
		return nil, errors.New("app: frames and tracker are required")
	}
	if deps.Publisher == nil {
		deps.Publisher = publish.Nop{}
	}

	return &App{
		cfg:       cfg,
		frames:    deps.Frames,
		tracker:   deps.Tracker,
		profiles:  deps.Profiles,
		store:     deps.Store,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		results:   make(chan gaze.Result, ResultQueueSize),
	}, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Frames returns the frame source feeding the pipeline.
func (a *App) Frames() frame.Source {
	return a.frames
}

// Results returns the channel results are published on.
func (a *App) Results() <-chan gaze.Result {
	return a.results
}

// PollResult returns the next queued result without blocking.
func (a *App) PollResult() (gaze.Result, bool) {
	select {
	case r := <-a.results:
		return r, true
	default:
		return gaze.Result{}, false
	}
}

// SetPauseHandler registers fn to be called with true when a session
// auto-pauses and false when it resumes. fn runs on the pipeline goroutine.
func (a *App) SetPauseHandler(fn func(paused bool)) {
	a.hmu.Lock()
	defer a.hmu.Unlock()
	a.pauseHandler = fn
}

func (a *App) firePause(paused bool) {
	a.hmu.RLock()
	fn := a.pauseHandler
	a.hmu.RUnlock()
	if fn != nil {
		fn(paused)
	}
}

// Calibration returns the active calibration, or nil.
func (a *App) Calibration() *calibration.Calibration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cal
}

// SetCalibration replaces the active calibration.
func (a *App) SetCalibration(c *calibration.Calibration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cal = c
}

// Calibrated reports whether the active calibration can drive a session.
func (a *App) Calibrated() bool {
	return a.Calibration().Valid()
}

// Calibrate walks the calibration grid, fits a model and returns the result.
// The calibration is not activated or saved; see SaveCalibration.
func (a *App) Calibrate(ctx context.Context, area aoi.Polygon, progress func(calibration.Progress)) (*calibration.Calibration, error) {
	if !area.Valid() {
		return nil, ErrInvalidAOI
	}

	a.mu.Lock()
	if a.sess != nil {
		a.mu.Unlock()
		return nil, ErrSessionRunning
	}
	if a.calibrating {
		a.mu.Unlock()
		return nil, ErrCalibrating
	}
	a.calibrating = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.calibrating = false
		a.mu.Unlock()
	}()

	collector := calibration.NewCollector(a.cfg.CalibSettle(), a.cfg.CalibDwell(), a.cfg.MinConfidence)
	samples, err := collector.Run(ctx, a.readFeatures, progress)
	if err != nil {
		return nil, fmt.Errorf("collect calibration samples: %w", err)
	}

	model := calibration.NewModel(a.cfg.CalibDegree, a.cfg.CalibRidgeAlpha)
	rms, err := model.Fit(samples)
	if err != nil {
		return nil, fmt.Errorf("fit gaze model: %w", err)
	}

	logger := log.With("points", len(samples), "rms", rms)
	if rms > a.cfg.CalibRMSWarn {
		logger.Warn("calibration error above threshold", "threshold", a.cfg.CalibRMSWarn)
	} else {
		logger.Info("calibration fitted")
	}

	return &calibration.Calibration{
		Model:       model,
		AOI:         append(aoi.Polygon(nil), area...),
		RMSError:    rms,
		ProfileName: a.cfg.ProfileName,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// readFeatures feeds the calibration collector from the live frame source.
func (a *App) readFeatures() ([]float64, float64, bool) {
	f, ok := a.frames.Latest()
	if !ok {
		return nil, 0, false
	}
	fc, err := a.tracker.Process(f)
	if err != nil {
		log.Debug("tracker failed during calibration", "error", err)
		return nil, 0, false
	}
	if fc == nil {
		return nil, 0, false
	}
	return face.Features(fc), fc.Confidence, true
}

// SaveCalibration persists c under name, records it in the catalog and makes
// it the active calibration. An empty name uses the configured profile.
func (a *App) SaveCalibration(c *calibration.Calibration, name string) (string, error) {
	if !c.Valid() {
		return "", ErrNotCalibrated
	}
	if a.profiles == nil {
		return "", errors.New("no profile store configured")
	}
	if name == "" {
		name = a.cfg.ProfileName
	}
	c.ProfileName = name

	artifact, err := c.Artifact()
	if err != nil {
		return "", fmt.Errorf("build calibration artifact: %w", err)
	}
	path, err := a.profiles.Save(artifact)
	if err != nil {
		return "", fmt.Errorf("save profile %s: %w", name, err)
	}
	fp, err := artifact.Fingerprint()
	if err != nil {
		return "", err
	}

	if a.store != nil {
		row := &store.Profile{
			Name:        name,
			Fingerprint: fp,
			RMSError:    c.RMSError,
			AOIVertices: len(c.AOI),
			Path:        path,
			CreatedAt:   c.CreatedAt,
		}
		if err := a.store.Profiles().Upsert(row); err != nil {
			log.Warn("failed to catalog profile", "profile", name, "error", err)
		}
		if err := a.store.Settings().Set(store.SettingActiveProfile, name); err != nil {
			log.Warn("failed to store active profile", "profile", name, "error", err)
		}
	}

	// Rebuild from the artifact so the active calibration carries the
	// fingerprint of exactly what is on disk.
	active, err := artifact.Calibration()
	if err != nil {
		return "", err
	}
	a.SetCalibration(active)

	log.Info("calibration saved", "profile", name, "path", path, "fingerprint", fp)
	return path, nil
}

// LoadCalibration loads the named profile and makes it active.
func (a *App) LoadCalibration(name string) (*calibration.Calibration, error) {
	if a.profiles == nil {
		return nil, errors.New("no profile store configured")
	}
	if name == "" {
		name = a.cfg.ProfileName
	}

	artifact, err := a.profiles.Load(name)
	if err != nil {
		return nil, err
	}
	c, err := artifact.Calibration()
	if err != nil {
		return nil, fmt.Errorf("rebuild calibration %s: %w", name, err)
	}

	a.SetCalibration(c)
	if a.store != nil {
		if err := a.store.Settings().Set(store.SettingActiveProfile, name); err != nil {
			log.Warn("failed to store active profile", "profile", name, "error", err)
		}
	}

	log.Info("calibration applied", "profile", name, "aoi_points", len(c.AOI), "rms", c.RMSError)
	return c, nil
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Running     bool       `json:"running"`
	Calibrating bool       `json:"calibrating"`
	Calibrated  bool       `json:"calibrated"`
	ProfileName string     `json:"profile_name,omitempty"`
	Fingerprint string     `json:"calibration_hash,omitempty"`
	RMSError    float64    `json:"rms_error,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	State       gaze.State `json:"state"`
	AutoPaused  bool       `json:"auto_paused"`
	Samples     int        `json:"samples"`
	LoopError   string     `json:"loop_error,omitempty"`
}

// Status reports what the app is doing.
func (a *App) Status() Status {
	a.mu.Lock()
	cal, s := a.cal, a.sess
	st := Status{Calibrating: a.calibrating, Calibrated: cal.Valid()}
	if cal != nil {
		st.ProfileName = cal.ProfileName
		st.RMSError = cal.RMSError
		if fp, err := cal.Fingerprint(); err == nil {
			st.Fingerprint = fp
		}
	}
	a.mu.Unlock()

	if s != nil {
		st.Running = true
		st.SessionID = s.meta.SessionID
		st.Mode = s.meta.Mode
		started := s.meta.StartedAt
		st.StartedAt = &started

		s.mu.Lock()
		st.State = s.machine.State()
		st.AutoPaused = s.paused
		st.Samples = len(s.samples)
		if s.loopErr != nil {
			st.LoopError = s.loopErr.Error()
		}
		s.mu.Unlock()
	}
	return st
}

// LastDebrief returns the summary of the most recently stopped session.
func (a *App) LastDebrief() *debrief.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Close stops a running session and releases the tracker.
func (a *App) Close() error {
	if a.Running() {
		if _, err := a.StopSession(); err != nil {
			log.Warn("failed to stop session on close", "error", err)
		}
	}
	a.publisher.Close()
	return a.tracker.Close()
}
