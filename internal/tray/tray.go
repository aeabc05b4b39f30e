// Package tray provides a system tray menu for starting and stopping detection.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(running bool)
	onSettings func()
	onQuit     func()
	running    bool
	threshold  float64
	last       string
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray in the stopped state. Only results at or above
// threshold replace the "Last" entry.
func New(threshold float64) *Tray {
	return &Tray{
		threshold: threshold,
		last:      lastTitle("", 0),
	}
}

// OnToggle sets the callback invoked with the new running state when the
// start/stop item is clicked.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit item.
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

func (t *Tray) onReady() {
	systray.SetTitle("Signify")
	systray.SetTooltip("Signify sign detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop detection")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(t.last, "Last detected sign")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Signify")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.running = !t.running
	running := t.running
	t.setToggleTitleLocked()
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(running)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetRunning syncs the toggle with a session started or stopped elsewhere.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	t.setToggleTitleLocked()
}

// SetLastResult shows label as the last detection when confidence meets the
// threshold. It reports whether the display changed.
func (t *Tray) SetLastResult(label string, confidence float64) bool {
	if confidence < t.threshold {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = lastTitle(label, confidence)
	if t.menuLast != nil {
		t.menuLast.SetTitle(t.last)
	}
	return true
}

// Last returns the current "Last" menu text.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsRunning returns the toggle state.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func (t *Tray) setToggleTitleLocked() {
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.running))
	}
}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop Detection"
	}
	return "▶ Start Detection"
}

func lastTitle(label string, confidence float64) string {
	if label == "" {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %s (%.0f%%)", label, confidence*100)
}
