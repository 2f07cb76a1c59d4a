// Package tray provides a system tray control for lookout sessions.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/lookout/internal/gaze"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(recording bool) error
	onMarker    func()
	onDashboard func()
	onQuit      func()
	recording   bool
	paused      bool
	state       gaze.State
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuState  *systray.MenuItem
	menuMarker *systray.MenuItem
}

// New creates a new Tray instance in the idle state.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback called when recording is switched on or off.
// A non-nil error keeps the previous state.
func (t *Tray) OnToggle(fn func(recording bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnMarker sets the callback for the "Add marker" item.
func (t *Tray) OnMarker(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMarker = fn
}

// OnDashboard sets the callback for the "Open dashboard" item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Lookout")
	systray.SetTooltip("Lookout cockpit attention tracker")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(false), "Start or stop a session")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem(stateTitle(false, false, gaze.Unknown), "Current gaze state")
	t.menuState.Disable()
	t.menuMarker = systray.AddMenuItem("Add marker", "Annotate the running session")
	t.menuMarker.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuDashboard := systray.AddMenuItem("Open dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Lookout")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuMarker.ClickedCh:
				t.handleMarker()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func toggleTitle(recording bool) string {
	if recording {
		return "■ Stop session"
	}
	return "● Start session"
}

func stateTitle(recording, paused bool, state gaze.State) string {
	switch {
	case !recording:
		return "Idle"
	case paused:
		return "Paused: no face"
	default:
		return "State: " + state.String()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.recording
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(want); err != nil {
			return
		}
	}
	t.SetRecording(want)
}

// handleMarker handles the marker menu item click.
func (t *Tray) handleMarker() {
	t.mu.RLock()
	callback, recording := t.onMarker, t.recording
	t.mu.RUnlock()

	if callback != nil && recording {
		callback()
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRecording updates the menu for a started or stopped session.
func (t *Tray) SetRecording(recording bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recording = recording
	if !recording {
		t.paused = false
		t.state = gaze.Unknown
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(recording))
	}
	if t.menuMarker != nil {
		if recording {
			t.menuMarker.Enable()
		} else {
			t.menuMarker.Disable()
		}
	}
	t.refreshState()
}

// SetState shows the committed gaze state.
func (t *Tray) SetState(state gaze.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == state {
		return
	}
	t.state = state
	t.refreshState()
}

// SetPaused shows or clears the auto-pause indicator.
func (t *Tray) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
	t.refreshState()
}

// refreshState requires t.mu to be held.
func (t *Tray) refreshState() {
	if t.menuState != nil {
		t.menuState.SetTitle(stateTitle(t.recording, t.paused, t.state))
	}
}

// Recording returns whether a session is running.
func (t *Tray) Recording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}

// StatusLine returns the text of the state menu item.
func (t *Tray) StatusLine() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return stateTitle(t.recording, t.paused, t.state)
}
