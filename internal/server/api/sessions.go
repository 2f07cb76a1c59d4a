package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/lookout/internal/app"
	"github.com/ayusman/lookout/internal/store"
)

// DefaultListLimit caps GET /api/sessions when no limit is given.
const DefaultListLimit = 50

// SessionHandler starts, stops and lists sessions.
type SessionHandler struct {
	ctl   Controller
	store *store.Store
}

// NewSessionHandler creates a SessionHandler. st may be nil, which disables
// the catalog endpoints.
func NewSessionHandler(ctl Controller, st *store.Store) *SessionHandler {
	return &SessionHandler{ctl: ctl, store: st}
}

// Routes registers the handler under r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.start)
	r.Post("/stop", h.stop)
	r.Post("/markers", h.marker)
	r.Get("/{id}", h.get)
}

type startSessionRequest struct {
	Mode    string `json:"mode"`
	Profile string `json:"profile"`
}

type markerRequest struct {
	Label string `json:"label"`
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// start handles POST /api/sessions.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Profile != "" {
		if _, err := h.ctl.LoadCalibration(req.Profile); err != nil {
			writeErr(w, err)
			return
		}
	}

	meta, err := h.ctl.StartSession(app.SessionOptions{Mode: req.Mode})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

// stop handles POST /api/sessions/stop and returns the debrief.
func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ctl.StopSession()
	if err != nil && summary == nil {
		writeErr(w, err)
		return
	}
	if err != nil {
		// The session ended but part of its metadata could not be written.
		w.Header().Set("X-Lookout-Warning", err.Error())
	}
	writeJSON(w, http.StatusOK, summary)
}

// marker handles POST /api/sessions/markers.
func (h *SessionHandler) marker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	m, err := h.ctl.AddMarker(req.Label)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"label": m.Label,
		"t_s":   m.Mono.Seconds(),
		"wall":  m.Wall,
	})
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not available")
		return
	}

	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.store.Sessions().List(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	// Listings omit the debrief payload.
	for _, s := range rows {
		s.Debrief = nil
	}
	if rows == nil {
		rows = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: rows})
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not available")
		return
	}

	s, err := h.store.Sessions().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
