package face

import (
	"sync"

	"github.com/ayusman/lookout/internal/frame"
)

// MockTracker is a test implementation of the Tracker interface.
// It allows tests to control the detection results.
type MockTracker struct {
	mu     sync.Mutex
	face   *Face
	err    error
	fn     func(frame.Frame) (*Face, error)
	calls  int
	closed bool
}

// NewMockTracker creates a new MockTracker that finds no face.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// SetFace sets the face returned by Process. nil means no face.
func (m *MockTracker) SetFace(f *Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.face = f
}

// SetError sets the error returned by Process.
func (m *MockTracker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetFunc makes Process delegate to fn, overriding SetFace and SetError.
func (m *MockTracker) SetFunc(fn func(frame.Frame) (*Face, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// Process returns the configured face or error.
func (m *MockTracker) Process(f frame.Frame) (*Face, error) {
	m.mu.Lock()
	m.calls++
	fn, face, err := m.fn, m.face, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(f)
	}
	if err != nil {
		return nil, err
	}
	return face, nil
}

// Calls returns how many frames were processed.
func (m *MockTracker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockTracker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock closed.
func (m *MockTracker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SyntheticLandmarks returns a full face mesh looking at normalized screen
// point (gx, gy). The irises shift inside fixed eye outlines so every gaze
// point produces a distinct, nearly linear feature vector.
func SyntheticLandmarks(gx, gy float64) []Landmark {
	lms := make([]Landmark, NumLandmarks)
	for i := range lms {
		lms[i] = Landmark{X: 0.5, Y: 0.5}
	}

	lms[NoseTip] = Landmark{X: 0.5, Y: 0.55}
	lms[Chin] = Landmark{X: 0.5, Y: 0.75}
	lms[Forehead] = Landmark{X: 0.5, Y: 0.25}

	lms[LeftEyeOuter] = Landmark{X: 0.38, Y: 0.44}
	lms[LeftEyeInner] = Landmark{X: 0.46, Y: 0.44}
	lms[LeftEyeTop] = Landmark{X: 0.42, Y: 0.43}
	lms[LeftEyeBottom] = Landmark{X: 0.42, Y: 0.45}

	lms[RightEyeOuter] = Landmark{X: 0.54, Y: 0.44}
	lms[RightEyeInner] = Landmark{X: 0.62, Y: 0.44}
	lms[RightEyeTop] = Landmark{X: 0.58, Y: 0.43}
	lms[RightEyeBottom] = Landmark{X: 0.58, Y: 0.45}

	dx := (gx - 0.5) * 0.04
	dy := (gy - 0.5) * 0.01
	placeIris(lms, LeftIris, 0.42+dx, 0.44+dy)
	placeIris(lms, RightIris, 0.58+dx, 0.44+dy)

	return lms
}

// SyntheticFace is SyntheticLandmarks run through FromLandmarks.
func SyntheticFace(gx, gy float64) *Face {
	f, err := FromLandmarks(SyntheticLandmarks(gx, gy))
	if err != nil {
		panic(err)
	}
	return f
}

// ClosedEyesFace returns a face whose lids are shut, so its confidence is 0.
func ClosedEyesFace() *Face {
	lms := SyntheticLandmarks(0.5, 0.5)
	lms[LeftEyeBottom].Y = lms[LeftEyeTop].Y
	lms[RightEyeBottom].Y = lms[RightEyeTop].Y
	f, err := FromLandmarks(lms)
	if err != nil {
		panic(err)
	}
	return f
}

func placeIris(lms []Landmark, ring [4]int, cx, cy float64) {
	const r = 0.004
	offsets := [4][2]float64{{r, 0}, {0, -r}, {-r, 0}, {0, r}}
	for i, idx := range ring {
		lms[idx] = Landmark{X: cx + offsets[i][0], Y: cy + offsets[i][1]}
	}
}
