package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/lookout/internal/aoi"
	"github.com/ayusman/lookout/internal/app"
	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/config"
	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/face"
	"github.com/ayusman/lookout/internal/frame"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/recorder"
	"github.com/ayusman/lookout/internal/server"
	"github.com/ayusman/lookout/internal/store"
	"github.com/ayusman/lookout/internal/telemetry"
)

// saveProfile fits a linear gaze model on synthetic faces and stores it as name.
func saveProfile(t *testing.T, profiles *profile.Store, name string) {
	t.Helper()

	var samples []calibration.Sample
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			gx, gy := 0.1+0.2*float64(i), 0.1+0.2*float64(j)
			samples = append(samples, calibration.Sample{
				Features: face.Features(face.SyntheticFace(gx, gy)),
				TargetX:  gx,
				TargetY:  gy,
			})
		}
	}
	m := calibration.NewModel(1, 0.01)
	rms, err := m.Fit(samples)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	c := &calibration.Calibration{
		Model:       m,
		AOI:         aoi.Polygon{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8}},
		RMSError:    rms,
		ProfileName: name,
		CreatedAt:   time.Now().UTC(),
	}
	artifact, err := c.Artifact()
	if err != nil {
		t.Fatalf("Artifact() error = %v", err)
	}
	if _, err := profiles.Save(artifact); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.FPSTarget = 100
	cfg.StableMs = 30
	cfg.StopTimeout = config.Duration(time.Second)

	s, err := store.New(cfg.DBPath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	slot := frame.NewSlot()
	slot.Put(frame.Frame{Data: []byte{0xff, 0xd8, 0xff, 0xd9}, Width: 640, Height: 480})
	tracker := face.NewMockTracker()
	profiles := profile.NewStore(cfg.ProfilesDir())
	metrics := telemetry.New(prometheus.NewRegistry())

	application, err := app.New(cfg, app.Deps{
		Frames:   slot,
		Tracker:  tracker,
		Profiles: profiles,
		Store:    s,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	srv := server.New(server.Config{
		Controller: application,
		Frames:     application.Frames(),
		Profiles:   profiles,
		Store:      s,
		Metrics:    metrics,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	post := func(t *testing.T, path, body string, want int) *http.Response {
		t.Helper()
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		if resp.StatusCode != want {
			resp.Body.Close()
			t.Fatalf("POST %s status = %d, want %d", path, resp.StatusCode, want)
		}
		return resp
	}
	status := func(t *testing.T) app.Status {
		t.Helper()
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()
		var st app.Status
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		return st
	}
	waitState := func(t *testing.T, want gaze.State) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if status(t).State == want {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("state never became %s", want)
	}

	saveProfile(t, profiles, "pilot")

	t.Run("ActivateProfile", func(t *testing.T) {
		resp := post(t, "/api/profiles/pilot/activate", "", http.StatusOK)
		resp.Body.Close()

		if st := status(t); !st.Calibrated || st.ProfileName != "pilot" {
			t.Errorf("status after activate = %+v", st)
		}
	})

	var meta gaze.SessionMeta
	t.Run("StartSession", func(t *testing.T) {
		tracker.SetFace(face.SyntheticFace(0.5, 0.5))

		resp := post(t, "/api/sessions", `{"mode":"flight"}`, http.StatusCreated)
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
			t.Fatalf("decode meta: %v", err)
		}
		if meta.Mode != "flight" || meta.ProfileName != "pilot" {
			t.Errorf("meta = %+v", meta)
		}
	})

	t.Run("LookAwayAndBack", func(t *testing.T) {
		waitState(t, gaze.InArea)

		tracker.SetFace(face.SyntheticFace(0.97, 0.5))
		waitState(t, gaze.OutOfArea)

		resp := post(t, "/api/sessions/markers", `{"label":"traffic"}`, http.StatusCreated)
		resp.Body.Close()

		tracker.SetFace(face.SyntheticFace(0.5, 0.5))
		waitState(t, gaze.InArea)
	})

	var summary debrief.Summary
	t.Run("StopSession", func(t *testing.T) {
		resp := post(t, "/api/sessions/stop", "", http.StatusOK)
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if summary.OutGlances < 1 {
			t.Errorf("OutGlances = %d, want >= 1", summary.OutGlances)
		}
		if summary.TotalSamples == 0 {
			t.Error("summary has no samples")
		}
	})

	t.Run("DebriefReproducibleFromLogs", func(t *testing.T) {
		dir := filepath.Join(cfg.RunsDir(), meta.SessionID)

		samples, err := recorder.ReadSamples(dir)
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
		events, err := recorder.ReadEvents(dir)
		if err != nil {
			t.Fatalf("ReadEvents() error = %v", err)
		}
		stored, err := recorder.ReadMeta(dir)
		if err != nil {
			t.Fatalf("ReadMeta() error = %v", err)
		}
		if stored.EndedAt == nil {
			t.Fatal("session meta has no end time")
		}

		again := debrief.Compute(samples, events, stored.EndedAt.Sub(stored.StartedAt))
		if again.TotalSamples != summary.TotalSamples || again.OutGlances != summary.OutGlances {
			t.Errorf("recomputed = %d samples/%d glances, stored = %d/%d",
				again.TotalSamples, again.OutGlances, summary.TotalSamples, summary.OutGlances)
		}
	})

	t.Run("Catalog", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sessions")
		if err != nil {
			t.Fatalf("GET /api/sessions error = %v", err)
		}
		defer resp.Body.Close()

		var list struct {
			Sessions []store.Session `json:"sessions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("decode sessions: %v", err)
		}
		if len(list.Sessions) != 1 || list.Sessions[0].ID != meta.SessionID {
			t.Fatalf("sessions = %+v", list.Sessions)
		}
		if list.Sessions[0].OutGlances != summary.OutGlances {
			t.Errorf("catalog glances = %d, want %d", list.Sessions[0].OutGlances, summary.OutGlances)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}
