// Package capture provides camera acquisition using GoCV (OpenCV).
// Frames are JPEG-encoded on the acquisition goroutine and handed to
// consumers through a frame.Slot.
package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/lookout/internal/frame"
	"github.com/ayusman/lookout/internal/log"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

// stopWait bounds how long Close waits for the acquisition goroutine.
var stopWait = 2 * time.Second

// ErrCameraNotOpen is returned when trying to use a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	Latest() (frame.Frame, bool)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	Width() int
	Height() int
}

// device is the part of gocv.VideoCapture the acquisition goroutine uses.
type device interface {
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, param float64)
	Close() error
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  device
	slot     *frame.Slot
	mu       sync.Mutex
	running  bool
	fps      int
	width    int
	height   int
	stopCh   chan struct{}
	done     chan struct{}
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		width:    DefaultWidth,
		height:   DefaultHeight,
		slot:     frame.NewSlot(),
	}
}

// Open opens the device at 640x480 and starts the acquisition goroutine.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	if w := int(capture.Get(gocv.VideoCaptureFrameWidth)); w > 0 {
		c.width = w
	}
	if h := int(capture.Get(gocv.VideoCaptureFrameHeight)); h > 0 {
		c.height = h
	}

	c.capture = capture
	c.slot.Reset()
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true

	go c.acquire(capture, c.stopCh, c.done)

	log.Info("camera opened", "device", c.deviceID, "width", c.width, "height", c.height, "fps", c.fps)
	return nil
}

// acquire owns the capture device until stop is closed and releases it on
// exit, so the device is never closed under a pending Read.
func (c *cameraImpl) acquire(capture device, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := capture.Close(); err != nil {
			log.Warn("failed to release camera", "device", c.deviceID, "error", err)
		}
	}()

	mat := gocv.NewMat()
	defer mat.Close()

	failures := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := capture.Read(&mat); !ok || mat.Empty() {
			failures++
			if failures == 30 {
				log.Warn("camera returned no frames", "device", c.deviceID)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		failures = 0

		buf, err := gocv.IMEncode(".jpg", mat)
		if err != nil {
			log.Warn("encode frame failed", "error", err)
			continue
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		c.slot.Put(frame.Frame{
			Data:      data,
			Timestamp: time.Now(),
			Width:     mat.Cols(),
			Height:    mat.Rows(),
		})
	}
}

// Close stops acquisition and releases the device.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	close(c.stopCh)
	select {
	case <-c.done:
	case <-time.After(stopWait):
		log.Warn("camera acquisition did not stop in time, device released when the read returns", "device", c.deviceID)
	}

	c.capture = nil
	c.running = false
	return nil
}

// Latest returns the newest encoded frame without blocking.
func (c *cameraImpl) Latest() (frame.Frame, bool) {
	return c.slot.Latest()
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Width returns the negotiated frame width.
func (c *cameraImpl) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// Height returns the negotiated frame height.
func (c *cameraImpl) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}
