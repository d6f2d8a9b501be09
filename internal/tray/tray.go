// Package tray provides a system tray menu to run sit-to-stand tests.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
)

// Tray is the system tray menu. Callbacks run on the menu goroutine.
type Tray struct {
	onStart    func()
	onStop     func()
	onReset    func()
	onSettings func()
	onQuit     func()
	running    bool
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuCount  *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray with no session running.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback for the start menu item.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback for the stop menu item.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnReset sets the callback for the reset menu item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnSettings sets the callback for the dashboard menu item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application. It blocks until systray.Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

func (t *Tray) onReady() {
	systray.SetTitle("Sit-Stand")
	systray.SetTooltip("Sit-to-stand test")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.running), "Start or stop a test")
	menuReset := systray.AddMenuItem("Reset", "Clear the current test")
	systray.AddSeparator()

	t.menuCount = systray.AddMenuItem(CountLabel(0, 0, 0), "Repetitions in this test")
	t.menuCount.Disable()
	t.menuLast = systray.AddMenuItem("Last: none", "Last repetition")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.call(func() func() { return t.onReset })
				t.SetRunning(false)
			case <-menuSettings.ClickedCh:
				t.call(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()

	if running {
		t.call(func() func() { return t.onStop })
	} else {
		t.call(func() func() { return t.onStart })
	}
	t.SetRunning(!running)
}

// SetRunning updates the start/stop item.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(running))
	}
}

// IsRunning reports whether the tray believes a test is running.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// HandleEvent keeps the menu in sync with the session. It is a session.Handler.
func (t *Tray) HandleEvent(e session.Event) {
	switch e.Type {
	case session.EventStarted:
		t.SetRunning(true)
		t.setTitles(CountLabel(0, 0, 0), "Last: none")
	case session.EventRep, session.EventRejected:
		if e.Rep != nil {
			t.setTitles("", RepLabel(*e.Rep))
		}
	case session.EventEnded:
		t.SetRunning(false)
		if e.Summary != nil {
			t.setTitles(CountLabel(e.Summary.Reps, e.Summary.Full, e.Summary.Partial), "")
		}
	}
}

// HandleFrame updates the repetition counter. It is an app.FrameHook.
func (t *Tray) HandleFrame(res session.FrameResult) {
	if res.Rep != nil || res.TimeUp {
		t.setTitles(CountLabel(res.Reps, res.Full, res.Partial), "")
	}
}

func (t *Tray) setTitles(count, last string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if count != "" && t.menuCount != nil {
		t.menuCount.SetTitle(count)
	}
	if last != "" && t.menuLast != nil {
		t.menuLast.SetTitle(last)
	}
}

func toggleLabel(running bool) string {
	if running {
		return "■ Stop Test"
	}
	return "▶ Start Test"
}

// CountLabel renders the repetition counter.
func CountLabel(reps, full, partial int) string {
	return fmt.Sprintf("Reps: %d (%d full, %d partial)", reps, full, partial)
}

// RepLabel renders the last repetition.
func RepLabel(rec scoring.Record) string {
	if rec.Class == scoring.Rejected {
		return "Last: rejected (arms)"
	}
	return fmt.Sprintf("Last: %d %s, %s", rec.Scores.Total, rec.Tier, rec.Class)
}

// Quit stops the tray loop and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
