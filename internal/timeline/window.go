// Package timeline lays detection events out on a paged day timeline.
//
// A Window is one page of the timeline: a calendar date in the stream's
// timezone and the hour the page starts at. Pages are Span hours long (12 or
// 24) and tile each day without gaps, so stepping forward from the last page
// of a day lands on the first page of the next day.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// ErrInvalidWindow is returned when a date or start hour does not name a page
var ErrInvalidWindow = errors.New("invalid window")

// Span is the length of a window in hours
type Span int

const (
	HalfDay Span = 12
	FullDay Span = 24
)

// ParseSpan validates a configured window length
func ParseSpan(hours int) (Span, error) {
	switch Span(hours) {
	case HalfDay, FullDay:
		return Span(hours), nil
	}
	return 0, fmt.Errorf("%w: window length must be 12 or 24 hours, got %d", ErrInvalidWindow, hours)
}

// Minutes is the window length in minutes
func (s Span) Minutes() float64 {
	return float64(s) * 60
}

// Direction of a window step
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Window identifies one page of the timeline
type Window struct {
	Date      string `json:"date"`
	StartHour int    `json:"start_hour"`
}

// NewWindow validates date and start hour against span
func NewWindow(date string, startHour int, span Span) (Window, error) {
	if _, err := time.Parse(timezone.DateLayout, date); err != nil {
		return Window{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidWindow, date)
	}
	if startHour < 0 || startHour >= 24 || startHour%int(span) != 0 {
		return Window{}, fmt.Errorf("%w: start hour %d does not begin a %d hour window", ErrInvalidWindow, startHour, span)
	}
	return Window{Date: date, StartHour: startHour}, nil
}

// WindowAt returns the window containing instant t viewed in loc
func WindowAt(t time.Time, loc *time.Location, span Span) Window {
	local := t.In(loc)
	return Window{
		Date:      local.Format(timezone.DateLayout),
		StartHour: startHourFor(local.Hour(), span),
	}
}

func startHourFor(hour int, span Span) int {
	return hour - hour%int(span)
}

// Advance returns the adjacent window in direction dir. Day boundaries are
// crossed with calendar arithmetic on the date string, so DST transitions
// never shift the result. A window with a malformed date is returned as is.
func Advance(w Window, dir Direction, span Span) Window {
	step := int(span)
	switch dir {
	case Forward:
		if next := w.StartHour + step; next < 24 {
			return Window{Date: w.Date, StartHour: next}
		}
		date, err := AddDays(w.Date, 1)
		if err != nil {
			return w
		}
		return Window{Date: date, StartHour: 0}
	case Backward:
		if prev := w.StartHour - step; prev >= 0 {
			return Window{Date: w.Date, StartHour: prev}
		}
		date, err := AddDays(w.Date, -1)
		if err != nil {
			return w
		}
		return Window{Date: date, StartHour: 24 - step}
	}
	return w
}

// AddDays shifts a YYYY-MM-DD date by n calendar days
func AddDays(date string, n int) (string, error) {
	d, err := time.Parse(timezone.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidWindow, date)
	}
	// time.Parse yields UTC, which has no DST
	return d.AddDate(0, 0, n).Format(timezone.DateLayout), nil
}

// Bounds returns the instants the window starts and ends at in loc. On DST
// transition days the wall-clock window is longer or shorter than Span.
func (w Window) Bounds(loc *time.Location, span Span) (start, end time.Time, err error) {
	d, err := time.Parse(timezone.DateLayout, w.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidWindow, w.Date)
	}
	start = time.Date(d.Year(), d.Month(), d.Day(), w.StartHour, 0, 0, 0, loc)
	end = time.Date(d.Year(), d.Month(), d.Day(), w.StartHour+int(span), 0, 0, 0, loc)
	return start, end, nil
}
