package face

import (
	"time"

	"github.com/ayusman/lookout/internal/frame"
)

// Tracker finds a face in a frame.
type Tracker interface {
	// Process analyzes one frame. It returns a nil face when no face is found.
	// Implementations are not safe for concurrent use.
	Process(f frame.Frame) (*Face, error)

	// Close releases any resources held by the tracker.
	Close() error
}

// Config holds options for the MediaPipe tracker.
type Config struct {
	// ScriptPath overrides the service script lookup.
	ScriptPath string

	// PythonPath overrides the interpreter lookup.
	PythonPath string

	// IdleTimeout stops the subprocess after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Second,
	}
}
