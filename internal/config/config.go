// Package config loads lookout runtime settings from a YAML or JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes the "2s" text form.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds every tunable of the tracker, the HTTP surface and the
// optional MQTT fan-out.
type Config struct {
	CameraIndex      int     `yaml:"camera_index" json:"camera_index"`
	MinConfidence    float64 `yaml:"min_confidence" json:"min_confidence"`
	EMAAlpha         float64 `yaml:"ema_alpha" json:"ema_alpha"`
	StableMs         float64 `yaml:"stable_ms" json:"stable_ms"`
	AutoPauseSeconds float64 `yaml:"auto_pause_seconds" json:"auto_pause_seconds"`

	CalibDegree      int     `yaml:"calib_degree" json:"calib_degree"`
	CalibRidgeAlpha  float64 `yaml:"calib_ridge_alpha" json:"calib_ridge_alpha"`
	CalibRMSWarn     float64 `yaml:"calib_rms_warn" json:"calib_rms_warn"`
	CalibDotDwellMs  int     `yaml:"calib_dot_dwell_ms" json:"calib_dot_dwell_ms"`
	CalibDotSettleMs int     `yaml:"calib_dot_settle_ms" json:"calib_dot_settle_ms"`

	ProfileName string   `yaml:"profile_name" json:"profile_name"`
	FPSTarget   int      `yaml:"fps_target" json:"fps_target"`
	StopTimeout Duration `yaml:"stop_timeout" json:"stop_timeout"`

	DataDir    string `yaml:"data_dir" json:"data_dir"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	LogLevel   string `yaml:"log_level" json:"log_level"`

	MQTTBroker      string `yaml:"mqtt_broker" json:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id" json:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix" json:"mqtt_topic_prefix"`

	MediaPipeScript string `yaml:"mediapipe_script" json:"mediapipe_script"`
	PythonPath      string `yaml:"python_path" json:"python_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CameraIndex:      0,
		MinConfidence:    0.30,
		EMAAlpha:         0.30,
		StableMs:         200,
		AutoPauseSeconds: 3.0,
		CalibDegree:      2,
		CalibRidgeAlpha:  1.0,
		CalibRMSWarn:     0.05,
		CalibDotDwellMs:  1500,
		CalibDotSettleMs: 800,
		ProfileName:      "default",
		FPSTarget:        30,
		StopTimeout:      Duration(2 * time.Second),
		DataDir:          defaultDataDir(),
		ListenAddr:       ":8080",
		LogLevel:         "info",
		MQTTClientID:     "lookout",
		MQTTTopicPrefix:  "lookout",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lookout"
	}
	return filepath.Join(home, ".lookout")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Files ending in .json are decoded as JSON, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		errs = append(errs, fmt.Errorf("ema_alpha must be in (0, 1], got %v", c.EMAAlpha))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be in [0, 1], got %v", c.MinConfidence))
	}
	if c.StableMs < 0 {
		errs = append(errs, fmt.Errorf("stable_ms must not be negative, got %v", c.StableMs))
	}
	if c.AutoPauseSeconds <= 0 {
		errs = append(errs, fmt.Errorf("auto_pause_seconds must be positive, got %v", c.AutoPauseSeconds))
	}
	if c.CalibDegree < 1 {
		errs = append(errs, fmt.Errorf("calib_degree must be at least 1, got %d", c.CalibDegree))
	}
	if c.CalibRidgeAlpha <= 0 {
		errs = append(errs, fmt.Errorf("calib_ridge_alpha must be positive, got %v", c.CalibRidgeAlpha))
	}
	if c.CalibDotDwellMs <= 0 || c.CalibDotSettleMs < 0 {
		errs = append(errs, fmt.Errorf("calibration dot timings must be positive"))
	}
	if c.FPSTarget <= 0 {
		errs = append(errs, fmt.Errorf("fps_target must be positive, got %d", c.FPSTarget))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop_timeout must be positive"))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir must be set"))
	}
	return errors.Join(errs...)
}

// ProfilesDir is where calibration profiles live.
func (c Config) ProfilesDir() string { return filepath.Join(c.DataDir, "profiles") }

// RunsDir is where session directories are created.
func (c Config) RunsDir() string { return filepath.Join(c.DataDir, "runs") }

// DBPath is the sqlite catalog path.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "lookout.db") }

// FrameInterval is the pipeline tick period.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPSTarget)
}

// AutoPause is auto_pause_seconds as a duration.
func (c Config) AutoPause() time.Duration {
	return time.Duration(c.AutoPauseSeconds * float64(time.Second))
}

// CalibSettle is calib_dot_settle_ms as a duration.
func (c Config) CalibSettle() time.Duration {
	return time.Duration(c.CalibDotSettleMs) * time.Millisecond
}

// CalibDwell is calib_dot_dwell_ms as a duration.
func (c Config) CalibDwell() time.Duration {
	return time.Duration(c.CalibDotDwellMs) * time.Millisecond
}
