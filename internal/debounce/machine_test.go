package debounce

import (
	"testing"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestMachine_InitialState(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)

	if m.State() != gaze.Unknown {
		t.Errorf("State() = %v, want UNKNOWN", m.State())
	}
	if len(m.Events()) != 0 {
		t.Errorf("Events() len = %d, want 0", len(m.Events()))
	}
}

func TestMachine_CommitsAtExactlyStable(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)

	if s, ev := m.Update(gaze.InArea, ms(0)); s != gaze.Unknown || ev != nil {
		t.Fatalf("first update = %v, %v; want UNKNOWN, nil", s, ev)
	}
	if s, ev := m.Update(gaze.InArea, ms(199)); s != gaze.Unknown || ev != nil {
		t.Fatalf("update at 199ms = %v, %v; want UNKNOWN, nil", s, ev)
	}

	s, ev := m.Update(gaze.InArea, ms(200))
	if s != gaze.InArea {
		t.Fatalf("update at 200ms = %v, want IN_AREA", s)
	}
	if ev == nil {
		t.Fatal("expected commit event")
	}
	want := Event{From: gaze.Unknown, To: gaze.InArea, Start: 0, End: ms(200)}
	if *ev != want {
		t.Errorf("event = %+v, want %+v", *ev, want)
	}
}

func TestMachine_FlickerNeverCommits(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)

	states := []gaze.State{gaze.InArea, gaze.OutOfArea}
	for i := 0; i < 100; i++ {
		s, ev := m.Update(states[i%2], ms(i*100))
		if s != gaze.Unknown || ev != nil {
			t.Fatalf("flicker committed at step %d: %v", i, s)
		}
	}
	if len(m.Events()) != 0 {
		t.Errorf("Events() len = %d, want 0", len(m.Events()))
	}
}

func TestMachine_InterruptedCandidateRestartsClock(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)

	m.Update(gaze.InArea, ms(0))
	m.Update(gaze.InArea, ms(150))
	m.Update(gaze.OutOfArea, ms(160))
	m.Update(gaze.InArea, ms(170))

	if s, _ := m.Update(gaze.InArea, ms(300)); s != gaze.Unknown {
		t.Fatalf("committed too early: %v", s)
	}
	if s, _ := m.Update(gaze.InArea, ms(370)); s != gaze.InArea {
		t.Fatalf("expected commit at 370ms, got %v", s)
	}
}

func TestMachine_MatchingCommittedClearsPending(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)
	m.Update(gaze.InArea, 0)
	m.Update(gaze.InArea, ms(200))

	m.Update(gaze.OutOfArea, ms(300))
	m.Update(gaze.InArea, ms(350))
	if s, _ := m.Update(gaze.OutOfArea, ms(500)); s != gaze.InArea {
		t.Fatalf("pending should have restarted at 500ms, got %v", s)
	}
	if s, _ := m.Update(gaze.OutOfArea, ms(700)); s != gaze.OutOfArea {
		t.Fatalf("expected OUT_OF_AREA at 700ms, got %v", s)
	}
}

func TestMachine_ForceEndSegment(t *testing.T) {
	m := New(ms(200))
	m.Reset(ms(1000))

	if ev := m.ForceEndSegment(ms(1000)); ev != nil {
		t.Errorf("ForceEndSegment at segment start = %+v, want nil", ev)
	}
	if ev := m.ForceEndSegment(ms(500)); ev != nil {
		t.Errorf("ForceEndSegment before segment start = %+v, want nil", ev)
	}

	m.Update(gaze.InArea, ms(1000))
	m.Update(gaze.InArea, ms(1200))

	ev := m.ForceEndSegment(ms(3700))
	if ev == nil {
		t.Fatal("ForceEndSegment returned nil")
	}
	if ev.From != gaze.InArea || ev.To != gaze.InArea {
		t.Errorf("event states = %v -> %v, want IN_AREA -> IN_AREA", ev.From, ev.To)
	}
	if ev.DurationMs() != 2500 {
		t.Errorf("DurationMs() = %v, want 2500", ev.DurationMs())
	}
	if m.State() != gaze.InArea {
		t.Errorf("State() changed to %v", m.State())
	}
	if n := len(m.Events()); n != 2 {
		t.Errorf("Events() len = %d, want 2", n)
	}
}

func TestMachine_Observer(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)

	var got []Event
	m.OnTransition(func(ev Event) { got = append(got, ev) })

	m.Update(gaze.OutOfArea, 0)
	m.Update(gaze.OutOfArea, ms(250))
	m.Update(gaze.InArea, ms(300))
	m.Update(gaze.InArea, ms(600))
	m.ForceEndSegment(ms(900))

	if len(got) != 2 {
		t.Fatalf("observer called %d times, want 2", len(got))
	}
	if got[0].To != gaze.OutOfArea || got[1].To != gaze.InArea {
		t.Errorf("observer events = %+v", got)
	}
	if got[1].Start != ms(250) || got[1].End != ms(600) {
		t.Errorf("second event span = %v..%v, want 250ms..600ms", got[1].Start, got[1].End)
	}
}

func TestMachine_ResetClearsHistory(t *testing.T) {
	m := New(ms(200))
	m.Reset(0)
	m.Update(gaze.InArea, 0)
	m.Update(gaze.InArea, ms(200))

	m.Reset(ms(5000))
	if m.State() != gaze.Unknown {
		t.Errorf("State() after Reset = %v", m.State())
	}
	if len(m.Events()) != 0 {
		t.Errorf("Events() after Reset len = %d", len(m.Events()))
	}
}

func TestNewMs(t *testing.T) {
	m := NewMs(200)
	m.Reset(0)
	m.Update(gaze.InArea, 0)
	if s, _ := m.Update(gaze.InArea, ms(200)); s != gaze.InArea {
		t.Errorf("NewMs(200) did not commit at 200ms")
	}
}
