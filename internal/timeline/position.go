package timeline

import (
	"sort"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// DefaultMinDuration keeps sub-minute events wide enough to click
const DefaultMinDuration = 15 * time.Minute

// Position places an event marker as percentages of the window width.
// Left+Width never exceeds 100.
type Position struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Positioner maps events into windows of one stream. A zero Span lays out
// HalfDay windows and a zero MinDuration applies no floor.
type Positioner struct {
	Span        Span
	MinDuration time.Duration
	// Location is the stream's timezone; event timestamps are converted into
	// it before their wall clock is read
	Location *time.Location
}

// NewPositioner returns a positioner with the default minimum duration
func NewPositioner(loc *time.Location, span Span) Positioner {
	return Positioner{Span: span, MinDuration: DefaultMinDuration, Location: loc}
}

// Position computes the geometry of ev within w. The second result is false
// when the event falls outside the window or lacks a timestamp or duration;
// the returned Position is then zero.
func (p Positioner) Position(ev event.Event, w Window) (Position, bool) {
	if !ev.Placeable() {
		return Position{}, false
	}

	local := ev.Timestamp.In(p.location())
	if local.Format(timezone.DateLayout) != w.Date {
		return Position{}, false
	}

	span := p.span().Minutes()
	sinceMidnight := float64(local.Hour()*60+local.Minute()) + float64(local.Second())/60
	fromStart := sinceMidnight - float64(w.StartHour*60)
	if fromStart < 0 || fromStart >= span {
		return Position{}, false
	}

	durationMinutes := max(*ev.Duration/60, p.MinDuration.Minutes())

	left := fromStart / span * 100
	width := min(durationMinutes/span*100, 100-left)
	return Position{Left: left, Width: width}, true
}

func (p Positioner) span() Span {
	if p.Span == 0 {
		return HalfDay
	}
	return p.Span
}

func (p Positioner) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Placement is an event with its computed geometry
type Placement struct {
	Event    event.Event `json:"event"`
	Position Position    `json:"position"`
}

// Layout positions every event that belongs to w, in timestamp order.
// Overlapping placements are kept; stacking is left to the renderer.
func (p Positioner) Layout(events []event.Event, w Window) []Placement {
	placements := make([]Placement, 0, len(events))
	for _, ev := range events {
		pos, ok := p.Position(ev, w)
		if !ok {
			continue
		}
		placements = append(placements, Placement{Event: ev, Position: pos})
	}

	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].Event.Timestamp.Before(placements[j].Event.Timestamp)
	})
	return placements
}

// Count returns how many events fall inside w
func (p Positioner) Count(events []event.Event, w Window) int {
	n := 0
	for _, ev := range events {
		if _, ok := p.Position(ev, w); ok {
			n++
		}
	}
	return n
}
