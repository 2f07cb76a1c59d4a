// Package face turns face-landmark detections into the iris, eye-openness and
// head-position measurements the gaze regression consumes.
package face

import (
	"fmt"
	"math"

	"github.com/ayusman/lookout/internal/gaze"
)

// Face mesh landmark indices following the MediaPipe FaceLandmarker convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip  = 1
	Forehead = 10
	Chin     = 152

	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	LeftEyeTop    = 159
	LeftEyeBottom = 145

	RightEyeOuter  = 362
	RightEyeInner  = 263
	RightEyeTop    = 386
	RightEyeBottom = 374

	NumLandmarks = 478
)

// Iris ring landmarks.
var (
	LeftIris  = [4]int{474, 475, 476, 477}
	RightIris = [4]int{469, 470, 471, 472}
)

// OpennessFullConfidence is the eye openness ratio at which confidence saturates.
const OpennessFullConfidence = 0.15

const eps = 1e-6

// Landmark is a normalized face mesh point.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face is one processed detection.
type Face struct {
	Landmarks     []Landmark
	LeftIris      gaze.Point
	RightIris     gaze.Point
	LeftOpenness  float64
	RightOpenness float64
	Confidence    float64
	Nose          gaze.Point
}

// FromLandmarks derives iris centres, eye openness and confidence from a full
// face mesh.
func FromLandmarks(lms []Landmark) (*Face, error) {
	if len(lms) < NumLandmarks {
		return nil, fmt.Errorf("face mesh has %d landmarks, need %d", len(lms), NumLandmarks)
	}

	left := openness(lms, LeftEyeTop, LeftEyeBottom, LeftEyeOuter, LeftEyeInner)
	right := openness(lms, RightEyeTop, RightEyeBottom, RightEyeOuter, RightEyeInner)

	return &Face{
		Landmarks:     lms,
		LeftIris:      irisCenter(lms, LeftIris),
		RightIris:     irisCenter(lms, RightIris),
		LeftOpenness:  left,
		RightOpenness: right,
		Confidence:    math.Max(0, math.Min(1, (left+right)/2/OpennessFullConfidence)),
		Nose:          gaze.Point{X: lms[NoseTip].X, Y: lms[NoseTip].Y},
	}, nil
}

func irisCenter(lms []Landmark, ring [4]int) gaze.Point {
	var p gaze.Point
	for _, i := range ring {
		p.X += lms[i].X
		p.Y += lms[i].Y
	}
	p.X /= float64(len(ring))
	p.Y /= float64(len(ring))
	return p
}

// openness is the vertical lid gap over the corner-to-corner width.
func openness(lms []Landmark, top, bottom, outer, inner int) float64 {
	vert := math.Abs(lms[top].Y - lms[bottom].Y)
	horiz := math.Abs(lms[outer].X-lms[inner].X) + eps
	return vert / horiz
}
