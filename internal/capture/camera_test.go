package capture

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/lookout/internal/frame"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name     string
		deviceID int
	}{
		{name: "default device", deviceID: 0},
		{name: "device 1", deviceID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.deviceID)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != DefaultFPS {
				t.Errorf("FPS() = %d, want %d (default)", got, DefaultFPS)
			}
			if cam.Width() != DefaultWidth || cam.Height() != DefaultHeight {
				t.Errorf("size = %dx%d, want %dx%d", cam.Width(), cam.Height(), DefaultWidth, DefaultHeight)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 1},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_Latest_NotOpened(t *testing.T) {
	cam := NewCamera(0)

	if _, ok := cam.Latest(); ok {
		t.Error("Latest() should report no frame when camera is not open")
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(0)

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	deadline := time.Now().Add(3 * time.Second)
	var got bool
	for time.Now().Before(deadline) {
		f, ok := cam.Latest()
		if ok {
			got = true
			if len(f.Data) < 2 || f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
				t.Error("frame is not a JPEG")
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !got {
		t.Log("no frame arrived within 3s; device may be busy")
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

// stuckDevice blocks in Read until released.
type stuckDevice struct {
	entered          chan struct{}
	release          chan struct{}
	once             sync.Once
	closes           atomic.Int32
	reading          atomic.Bool
	closedDuringRead atomic.Bool
}

func newStuckDevice() *stuckDevice {
	return &stuckDevice{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *stuckDevice) Read(*gocv.Mat) bool {
	d.reading.Store(true)
	d.once.Do(func() { close(d.entered) })
	<-d.release
	d.reading.Store(false)
	return false
}

func (d *stuckDevice) Set(gocv.VideoCaptureProperties, float64) {}

func (d *stuckDevice) Close() error {
	if d.reading.Load() {
		d.closedDuringRead.Store(true)
	}
	d.closes.Add(1)
	return nil
}

func TestCamera_CloseTimeoutLeavesDeviceToReader(t *testing.T) {
	old := stopWait
	stopWait = 20 * time.Millisecond
	defer func() { stopWait = old }()

	dev := newStuckDevice()
	c := &cameraImpl{
		slot:    frame.NewSlot(),
		capture: dev,
		running: true,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	done := c.done
	go c.acquire(dev, c.stopCh, done)
	<-dev.entered

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.IsOpen() {
		t.Error("IsOpen() = true after Close()")
	}
	if n := dev.closes.Load(); n != 0 {
		t.Fatalf("device closed %d times while Read was pending", n)
	}

	close(dev.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquisition goroutine did not exit")
	}
	if n := dev.closes.Load(); n != 1 {
		t.Errorf("device closes = %d, want 1", n)
	}
	if dev.closedDuringRead.Load() {
		t.Error("device closed during Read")
	}
}
