// Package debounce turns the noisy per-frame gaze classification into a
// committed state that only changes after a candidate has been stable for a
// configured duration.
package debounce

import (
	"time"

	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
)

// Event is a closed segment of committed state.
type Event = gaze.TransitionEvent

// Machine is a level-triggered hysteresis filter over gaze states.
// It is not safe for concurrent use; the pipeline goroutine owns it.
type Machine struct {
	stable time.Duration

	committed    gaze.State
	segmentStart time.Duration

	pending      gaze.State
	hasPending   bool
	pendingSince time.Duration

	events       []Event
	onTransition func(Event)
}

// New creates a machine that commits a candidate after stable has elapsed.
func New(stable time.Duration) *Machine {
	return &Machine{stable: stable, committed: gaze.Unknown}
}

// NewMs is New with the threshold in milliseconds.
func NewMs(stableMs float64) *Machine {
	return New(time.Duration(stableMs * float64(time.Millisecond)))
}

// Reset sets the committed state to Unknown, opens a segment at now and
// clears the pending candidate and event history.
func (m *Machine) Reset(now time.Duration) {
	m.committed = gaze.Unknown
	m.segmentStart = now
	m.clearPending()
	m.events = m.events[:0]
}

// Update feeds one raw classification observed at now. It returns the
// committed state and, when this call committed a transition, the event that
// closed the previous segment.
func (m *Machine) Update(candidate gaze.State, now time.Duration) (gaze.State, *Event) {
	if candidate == m.committed {
		m.clearPending()
		return m.committed, nil
	}

	if !m.hasPending || candidate != m.pending {
		m.pending = candidate
		m.pendingSince = now
		m.hasPending = true
		return m.committed, nil
	}

	if now-m.pendingSince < m.stable {
		return m.committed, nil
	}

	ev := Event{
		From:  m.committed,
		To:    candidate,
		Start: m.segmentStart,
		End:   now,
	}
	m.events = append(m.events, ev)
	m.committed = candidate
	m.segmentStart = now
	m.clearPending()

	log.Debug("state committed", "from", ev.From, "to", ev.To, "duration_ms", ev.DurationMs())

	if m.onTransition != nil {
		m.onTransition(ev)
	}
	return m.committed, &ev
}

// ForceEndSegment closes the open segment without changing state. It returns
// nil when no time has passed since the segment opened. The observer is not
// notified.
func (m *Machine) ForceEndSegment(now time.Duration) *Event {
	if now <= m.segmentStart {
		return nil
	}
	ev := Event{
		From:  m.committed,
		To:    m.committed,
		Start: m.segmentStart,
		End:   now,
	}
	m.events = append(m.events, ev)
	return &ev
}

// OnTransition registers the observer called synchronously on every commit.
// Passing nil removes it.
func (m *Machine) OnTransition(fn func(Event)) {
	m.onTransition = fn
}

// State returns the committed state.
func (m *Machine) State() gaze.State {
	return m.committed
}

// Events returns a copy of the event history since the last Reset.
func (m *Machine) Events() []Event {
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Machine) clearPending() {
	m.hasPending = false
	m.pending = gaze.Unknown
	m.pendingSince = 0
}
