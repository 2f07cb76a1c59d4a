package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.FrameInterval() != time.Second/30 {
		t.Errorf("FrameInterval() = %v", cfg.FrameInterval())
	}
	if time.Duration(cfg.StopTimeout) != 2*time.Second {
		t.Errorf("StopTimeout = %v, want 2s", time.Duration(cfg.StopTimeout))
	}
	if cfg.AutoPause() != 3*time.Second {
		t.Errorf("AutoPause() = %v, want 3s", cfg.AutoPause())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProfileName != "default" || cfg.StableMs != 200 {
		t.Errorf("Load() did not return defaults: %+v", cfg)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "lookout.yaml", `
ema_alpha: 0.5
stable_ms: 150
profile_name: captain
stop_timeout: 500ms
data_dir: /tmp/lookout-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EMAAlpha != 0.5 || cfg.StableMs != 150 || cfg.ProfileName != "captain" {
		t.Errorf("Load() = %+v", cfg)
	}
	if time.Duration(cfg.StopTimeout) != 500*time.Millisecond {
		t.Errorf("StopTimeout = %v", time.Duration(cfg.StopTimeout))
	}
	// Untouched keys keep their defaults.
	if cfg.CalibDegree != 2 || cfg.FPSTarget != 30 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.RunsDir() != filepath.Join("/tmp/lookout-test", "runs") {
		t.Errorf("RunsDir() = %q", cfg.RunsDir())
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "lookout.json", `{"fps_target": 15, "stop_timeout": "1s", "mqtt_broker": "tcp://localhost:1883"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FPSTarget != 15 || cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("Load() = %+v", cfg)
	}
	if time.Duration(cfg.StopTimeout) != time.Second {
		t.Errorf("StopTimeout = %v", time.Duration(cfg.StopTimeout))
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"alpha zero", "ema_alpha: 0\n"},
		{"alpha above one", "ema_alpha: 1.5\n"},
		{"confidence", "min_confidence: 2\n"},
		{"fps", "fps_target: 0\n"},
		{"degree", "calib_degree: 0\n"},
		{"bad duration", "stop_timeout: soon\n"},
		{"syntax", "ema_alpha: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "c.yaml", tt.body)
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}
