// Package tray provides the system tray menu for handsign.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu. Callbacks run on the menu goroutine.
type Tray struct {
	onToggle   func(enabled bool)
	onSequence func(sequence bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	sequence   bool
	mu         sync.RWMutex

	menuToggle   *systray.MenuItem
	menuSequence *systray.MenuItem
	menuLastSign *systray.MenuItem
}

// New creates a Tray with detection enabled.
func New(sequence bool) *Tray {
	return &Tray{
		enabled:  true,
		sequence: sequence,
	}
}

// OnToggle sets the callback for the detection toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSequence sets the callback for the sequence-mode checkbox.
func (t *Tray) OnSequence(fn func(sequence bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSequence = fn
}

// OnSettings sets the callback for "Open Settings...".
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Handsign")
	systray.SetTooltip("Handsign sign language recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle sign recognition")
	t.menuSequence = systray.AddMenuItemCheckbox("Sequence mode", "Classify windows of frames", t.sequence)
	systray.AddSeparator()

	t.menuLastSign = systray.AddMenuItem("Last: none", "Last recognized sign")
	t.menuLastSign.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Handsign")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuSequence.ClickedCh:
				t.handleSequence()
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

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSequence() {
	t.mu.Lock()
	t.sequence = !t.sequence
	sequence := t.sequence
	if sequence {
		t.menuSequence.Check()
	} else {
		t.menuSequence.Uncheck()
	}
	callback := t.onSequence
	t.mu.Unlock()

	if callback != nil {
		callback(sequence)
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

// SetLastSign shows the most recent accepted label, e.g. "hello (87%)".
func (t *Tray) SetLastSign(status string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastSign == nil {
		return
	}
	if status == "" {
		t.menuLastSign.SetTitle("Last: none")
	} else {
		t.menuLastSign.SetTitle("Last: " + status)
	}
}

// SetSequence syncs the checkbox with a change made elsewhere.
func (t *Tray) SetSequence(sequence bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sequence = sequence
	if t.menuSequence == nil {
		return
	}
	if sequence {
		t.menuSequence.Check()
	} else {
		t.menuSequence.Uncheck()
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
