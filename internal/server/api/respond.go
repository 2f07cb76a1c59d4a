// Package api provides the REST handlers of the lookout control surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/lookout/internal/app"
	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/store"
)

// Controller is the part of the orchestrator the handlers drive.
type Controller interface {
	StartSession(opts app.SessionOptions) (gaze.SessionMeta, error)
	StopSession() (*debrief.Summary, error)
	AddMarker(label string) (gaze.Marker, error)
	LoadCalibration(name string) (*calibration.Calibration, error)
	Status() app.Status
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warn("failed to encode response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotCalibrated),
		errors.Is(err, app.ErrSessionRunning),
		errors.Is(err, app.ErrNoSession),
		errors.Is(err, app.ErrCalibrating):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with the status it maps to.
func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}
