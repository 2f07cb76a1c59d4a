// Package frame provides the latest-frame handoff between the camera
// acquisition goroutine and the pipeline consumer.
package frame

import (
	"sync"
	"time"
)

// Frame is one JPEG-encoded camera image. Data must not be modified after Put.
type Frame struct {
	Data      []byte
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
}

// Source is anything that can hand out the most recent frame without blocking.
type Source interface {
	Latest() (Frame, bool)
}

// Slot holds at most one frame. Writers overwrite, readers take a snapshot.
type Slot struct {
	mu      sync.Mutex
	current Frame
	has     bool
	read    bool
	seq     uint64
	drops   uint64
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Put stores f, replacing any previous frame. The slot assigns the sequence
// number. Overwriting a frame nobody read counts as a drop.
func (s *Slot) Put(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.has && !s.read {
		s.drops++
	}
	s.seq++
	f.Seq = s.seq
	s.current = f
	s.has = true
	s.read = false
}

// Latest returns the newest frame. ok is false until the first Put.
func (s *Slot) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.has {
		return Frame{}, false
	}
	s.read = true
	return s.current, true
}

// Drops returns how many frames were overwritten before being read.
func (s *Slot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Reset empties the slot.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Frame{}
	s.has = false
	s.read = false
}
