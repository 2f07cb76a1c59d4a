package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ayusman/lookout/internal/app"
	"github.com/ayusman/lookout/internal/capture"
	"github.com/ayusman/lookout/internal/face"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/publish"
	"github.com/ayusman/lookout/internal/server"
	"github.com/ayusman/lookout/internal/store"
	"github.com/ayusman/lookout/internal/telemetry"
	"github.com/ayusman/lookout/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the camera and serve the control API",
	Long: `Opens the camera, starts the face tracker and serves the HTTP and WebSocket
control surface. Sessions are started and stopped through the API or the tray.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides listen_addr)")
	serveCmd.Flags().Bool("tray", false, "Show a system tray control")
	serveCmd.Flags().String("web", "", "Directory of static dashboard files")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.ListenAddr
	}
	withTray, _ := cmd.Flags().GetBool("tray")
	webDir, _ := cmd.Flags().GetString("web")
	if webDir == "" {
		webDir = findWebDir()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)

	camera := capture.NewCamera(cfg.CameraIndex)
	camera.SetFPS(cfg.FPSTarget)
	if err := camera.Open(); err != nil {
		return fmt.Errorf("failed to open camera %d: %w", cfg.CameraIndex, err)
	}
	defer camera.Close()

	// Try MediaPipe first, fall back to a tracker that never finds a face
	var tracker face.Tracker
	faceCfg := face.DefaultConfig()
	faceCfg.ScriptPath = cfg.MediaPipeScript
	faceCfg.PythonPath = cfg.PythonPath
	mp, err := face.NewMediaPipeTracker(faceCfg)
	if err == nil {
		tracker = mp
		log.Info("using mediapipe face landmarker")
	} else {
		log.Warn("mediapipe not available, no faces will be detected", "error", err)
		tracker = face.NewMockTracker()
	}

	var publisher publish.Publisher = publish.Nop{}
	if cfg.MQTTBroker != "" {
		p, err := publish.Connect(publish.Options{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			log.Warn("mqtt disabled", "error", err)
		} else {
			publisher = p
		}
	}

	profiles := profile.NewStore(cfg.ProfilesDir())
	a, err := app.New(cfg, app.Deps{
		Frames:    camera,
		Tracker:   tracker,
		Profiles:  profiles,
		Store:     st,
		Metrics:   metrics,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	loadActiveProfile(a, st)

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Controller: a,
		Frames:     a.Frames(),
		Profiles:   profiles,
		Store:      st,
		Metrics:    metrics,
	})
	if webDir != "" {
		log.Info("serving static files", "dir", webDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(ctx, addr)
	}()

	if withTray {
		t := newTray(a, dashboardURL(addr), stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// The tray owns the main goroutine until Quit.
		t.Run()
		stop()
	}

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	if a.Running() {
		if _, err := a.StopSession(); err != nil {
			log.Warn("failed to stop session on shutdown", "error", err)
		}
	}
	log.Info("lookout stopped")
	return nil
}

// loadActiveProfile applies the last activated profile, or the configured one.
func loadActiveProfile(a *app.App, st *store.Store) {
	name, err := st.Settings().Get(store.SettingActiveProfile)
	if err != nil || name == "" {
		name = cfg.ProfileName
	}
	if _, err := a.LoadCalibration(name); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			log.Info("no calibration yet; calibrate before starting a session", "profile", name)
			return
		}
		log.Warn("failed to load calibration", "profile", name, "error", err)
	}
}

// newTray wires the tray menu to the orchestrator.
func newTray(a *app.App, url string, quit func()) *tray.Tray {
	t := tray.New()
	t.OnToggle(func(recording bool) error {
		if recording {
			_, err := a.StartSession(app.SessionOptions{})
			if err != nil {
				log.Warn("failed to start session", "error", err)
			}
			return err
		}
		_, err := a.StopSession()
		if err != nil && !errors.Is(err, app.ErrNoSession) {
			log.Warn("failed to stop session", "error", err)
		}
		return nil
	})
	t.OnMarker(func() {
		if _, err := a.AddMarker("marker"); err != nil {
			log.Warn("failed to add marker", "error", err)
		}
	})
	t.OnDashboard(func() { openBrowser(url) })
	t.OnQuit(quit)
	a.SetPauseHandler(t.SetPaused)

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			st := a.Status()
			if st.Running != t.Recording() {
				t.SetRecording(st.Running)
			}
			t.SetState(st.State)
		}
	}()
	return t
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "error", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.lookout/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(cfg.DataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
