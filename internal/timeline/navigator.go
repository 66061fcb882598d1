package timeline

import (
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
)

// Navigator owns the window a viewer is looking at. Every mutation reports
// whether the window's date changed, which is the caller's cue to re-fetch
// that date's events. It is not safe for concurrent use.
type Navigator struct {
	span   Span
	loc    *time.Location
	window Window
}

// NewNavigator starts at the window containing now
func NewNavigator(now time.Time, loc *time.Location, span Span) *Navigator {
	return &Navigator{
		span:   span,
		loc:    loc,
		window: WindowAt(now, loc, span),
	}
}

// Window returns the current window
func (n *Navigator) Window() Window {
	return n.window
}

// Span returns the window length
func (n *Navigator) Span() Span {
	return n.span
}

// Step pages one window in dir
func (n *Navigator) Step(dir Direction) (Window, bool) {
	return n.set(Advance(n.window, dir, n.span))
}

// SelectTime jumps to the window containing t
func (n *Navigator) SelectTime(t time.Time) (Window, bool) {
	return n.set(WindowAt(t, n.loc, n.span))
}

// SelectEvent jumps to the window containing ev's timestamp. Events without a
// timestamp leave the window unchanged.
func (n *Navigator) SelectEvent(ev event.Event) (Window, bool) {
	if ev.Timestamp.IsZero() {
		return n.window, false
	}
	return n.SelectTime(ev.Timestamp)
}

// SelectDate jumps to the first window of a calendar date
func (n *Navigator) SelectDate(date string) (Window, bool, error) {
	w, err := NewWindow(date, 0, n.span)
	if err != nil {
		return n.window, false, err
	}
	w, changed := n.set(w)
	return w, changed, nil
}

// Accept adopts a date chosen by the event source, such as the most recent
// day with data, keeping the current start hour
func (n *Navigator) Accept(date string) (Window, bool, error) {
	w, err := NewWindow(date, n.window.StartHour, n.span)
	if err != nil {
		return n.window, false, err
	}
	w, changed := n.set(w)
	return w, changed, nil
}

func (n *Navigator) set(w Window) (Window, bool) {
	changed := w.Date != n.window.Date
	n.window = w
	return w, changed
}
