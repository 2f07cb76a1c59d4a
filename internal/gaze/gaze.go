// Package gaze defines the core domain types shared by the classification
// pipeline: gaze states, per-frame samples, and committed state transitions.
package gaze

import (
	"fmt"
	"time"
)

// State is the committed (or raw) attention classification of one frame.
type State int

const (
	// Unknown means no usable face was seen, or nothing has been committed yet.
	Unknown State = iota
	// InArea means the smoothed gaze point lies inside the area of interest.
	InArea
	// OutOfArea means the smoothed gaze point lies outside the area of interest.
	OutOfArea
)

// States lists every state in declaration order.
var States = [...]State{Unknown, InArea, OutOfArea}

// String returns the wire form of the state.
func (s State) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case InArea:
		return "IN_AREA"
	case OutOfArea:
		return "OUT_OF_AREA"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState parses the wire form produced by String.
func ParseState(s string) (State, error) {
	switch s {
	case "UNKNOWN":
		return Unknown, nil
	case "IN_AREA":
		return InArea, nil
	case "OUT_OF_AREA":
		return OutOfArea, nil
	}
	return Unknown, fmt.Errorf("unknown gaze state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if s < Unknown || s > OutOfArea {
		return nil, fmt.Errorf("invalid gaze state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Point is a normalized 2-D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sample is one processed frame. Mono is the monotonic offset from the start
// of the session; Wall is the wall-clock time the frame was processed.
type Sample struct {
	Mono       time.Duration `json:"mono"`
	Wall       time.Time     `json:"wall"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Confidence float64       `json:"confidence"`
	State      State         `json:"state"`
}

// TransitionEvent is a closed segment during which the committed state was From.
// To is the state that was committed at End; From == To marks a segment closed
// at session end without a state change.
type TransitionEvent struct {
	From  State         `json:"from_state"`
	To    State         `json:"to_state"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration returns End - Start.
func (e TransitionEvent) Duration() time.Duration {
	return e.End - e.Start
}

// DurationMs returns the segment duration in milliseconds.
func (e TransitionEvent) DurationMs() float64 {
	return float64(e.End-e.Start) / float64(time.Millisecond)
}

// Marker is a manual annotation placed during a session.
type Marker struct {
	Mono  time.Duration `json:"mono"`
	Wall  time.Time     `json:"wall"`
	Label string        `json:"label"`
}

// SessionMeta describes one recorded session.
type SessionMeta struct {
	SessionID       string     `json:"session_id"`
	RunID           string     `json:"run_id"`
	Mode            string     `json:"mode"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CameraIndex     int        `json:"camera_index"`
	CameraWidth     int        `json:"camera_width"`
	CameraHeight    int        `json:"camera_height"`
	CalibrationHash string     `json:"calibration_hash"`
	ProfileName     string     `json:"profile_name"`
}

// Result is the record published to consumers for every processed frame.
type Result struct {
	Sample       Sample `json:"sample"`
	FaceDetected bool   `json:"face_detected"`
	AutoPaused   bool   `json:"auto_paused"`
	LeftIris     *Point `json:"left_iris,omitempty"`
	RightIris    *Point `json:"right_iris,omitempty"`
}
