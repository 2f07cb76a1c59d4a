package capture

import (
	"sync"
	"time"

	"github.com/ayusman/lookout/internal/frame"
)

// MockCamera plays back pre-recorded frames for testing
type MockCamera struct {
	frames  []frame.Frame
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
	seq     uint64
}

func NewMockCamera(frames []frame.Frame, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// Latest returns the next frame in the sequence. Without looping, the last
// frame keeps being returned once playback reaches the end.
func (c *MockCamera) Latest() (frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || len(c.frames) == 0 {
		return frame.Frame{}, false
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			c.index = len(c.frames) - 1
		}
	}

	f := c.frames[c.index]
	c.index++
	c.seq++
	f.Seq = c.seq
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	return f, true
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return DefaultFPS }
func (c *MockCamera) Width() int     { return DefaultWidth }
func (c *MockCamera) Height() int    { return DefaultHeight }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []frame.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
