package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/store"
)

// ProfileHandler serves calibration profiles.
type ProfileHandler struct {
	profiles *profile.Store
	store    *store.Store
	ctl      Controller
}

// NewProfileHandler creates a ProfileHandler. st may be nil, in which case
// listings come from the profile directory alone.
func NewProfileHandler(profiles *profile.Store, st *store.Store, ctl Controller) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, store: st, ctl: ctl}
}

// Routes registers the handler under r.
func (h *ProfileHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{name}", h.get)
	r.Post("/{name}/activate", h.activate)
}

type profileSummary struct {
	Name        string     `json:"name"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	RMSError    float64    `json:"rms_error"`
	AOIVertices int        `json:"aoi_vertices"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Active      bool       `json:"active"`
}

type listProfilesResponse struct {
	Profiles []profileSummary `json:"profiles"`
}

type profileResponse struct {
	profileSummary
	Path       string       `json:"path"`
	AOIPolygon [][2]float64 `json:"aoi_polygon"`
	Degree     int          `json:"degree"`
}

func (h *ProfileHandler) activeName() string {
	if h.ctl == nil {
		return ""
	}
	return h.ctl.Status().ProfileName
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	active := h.activeName()
	resp := listProfilesResponse{Profiles: make([]profileSummary, 0)}

	if h.store != nil {
		rows, err := h.store.Profiles().List()
		if err != nil {
			writeErr(w, err)
			return
		}
		for _, p := range rows {
			created := p.CreatedAt
			resp.Profiles = append(resp.Profiles, profileSummary{
				Name:        p.Name,
				Fingerprint: p.Fingerprint,
				RMSError:    p.RMSError,
				AOIVertices: p.AOIVertices,
				CreatedAt:   &created,
				Active:      p.Name == active,
			})
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	names, err := h.profiles.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	for _, n := range names {
		resp.Profiles = append(resp.Profiles, profileSummary{Name: n, Active: n == active})
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/profiles/{name}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := h.profiles.Load(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	fp, err := a.Fingerprint()
	if err != nil {
		writeErr(w, err)
		return
	}

	created := a.CreatedAt
	writeJSON(w, http.StatusOK, profileResponse{
		profileSummary: profileSummary{
			Name:        a.ProfileName,
			Fingerprint: fp,
			RMSError:    a.RMSError,
			AOIVertices: len(a.AOIPolygon),
			CreatedAt:   &created,
			Active:      name == h.activeName(),
		},
		Path:       h.profiles.Path(name),
		AOIPolygon: a.AOIPolygon,
		Degree:     a.GazeModel.Degree,
	})
}

// activate handles POST /api/profiles/{name}/activate.
func (h *ProfileHandler) activate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.ctl == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not available")
		return
	}
	if _, err := h.ctl.LoadCalibration(name); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}
