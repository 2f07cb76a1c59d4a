// Package server provides the HTTP control surface of lookout.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/lookout/internal/aoi"
	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/frame"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/server/api"
	"github.com/ayusman/lookout/internal/store"
	"github.com/ayusman/lookout/internal/telemetry"
)

// Controller is the orchestrator surface the server drives.
type Controller interface {
	api.Controller
	Results() <-chan gaze.Result
	Calibrate(ctx context.Context, area aoi.Polygon, progress func(calibration.Progress)) (*calibration.Calibration, error)
	SaveCalibration(c *calibration.Calibration, name string) (string, error)
}

// Config holds the server configuration. Every field is optional; routes
// whose dependencies are missing are not registered.
type Config struct {
	StaticDir  string
	Controller Controller
	Frames     frame.Source
	Profiles   *profile.Store
	Store      *store.Store
	Metrics    *telemetry.Metrics
}

// Server represents the HTTP server for the lookout application.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
	live   *LiveHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Get("/api/health", s.handleHealth)

	ctl := s.config.Controller
	if ctl != nil {
		r.Get("/api/status", s.handleStatus)
		r.Route("/api/sessions", api.NewSessionHandler(ctl, s.config.Store).Routes)

		s.live = NewLiveHandler(ctl.Results())
		r.Handle("/api/live", s.live)
		r.Handle("/api/calibrate", NewCalibrationHandler(ctl))
	}

	if s.config.Profiles != nil {
		r.Route("/api/profiles", api.NewProfileHandler(s.config.Profiles, s.config.Store, ctl).Routes)
	}

	if s.config.Frames != nil {
		r.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Metrics != nil {
		r.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.live != nil {
		s.live.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
