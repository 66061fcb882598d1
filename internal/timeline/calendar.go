package timeline

import (
	"fmt"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// Marker is an hour tick on the window axis
type Marker struct {
	Hour  int     `json:"hour"`
	Left  float64 `json:"left"`
	Label string  `json:"label"`
}

// Markers returns ticks every quarter of the window, including both edges
func Markers(w Window, span Span) []Marker {
	step := int(span) / 4
	markers := make([]Marker, 0, 5)
	for offset := 0; offset <= int(span); offset += step {
		hour := w.StartHour + offset
		markers = append(markers, Marker{
			Hour:  hour,
			Left:  float64(offset) / float64(span) * 100,
			Label: HourLabel(hour),
		})
	}
	return markers
}

// HourLabel renders an hour of day on a 12-hour clock; 24 wraps to midnight
func HourLabel(hour int) string {
	hour %= 24
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

// NowMarker returns the left offset of now within w, or false when now is
// in another window
func NowMarker(now time.Time, w Window, loc *time.Location, span Span) (float64, bool) {
	local := now.In(loc)
	if local.Format(timezone.DateLayout) != w.Date {
		return 0, false
	}
	minutes := float64(local.Hour()*60+local.Minute()) + float64(local.Second())/60
	fromStart := minutes - float64(w.StartHour*60)
	if fromStart < 0 || fromStart >= span.Minutes() {
		return 0, false
	}
	return fromStart / span.Minutes() * 100, true
}

// Day is one cell of the week strip
type Day struct {
	Date       string `json:"date"`
	DayOfWeek  string `json:"day_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	IsToday    bool   `json:"is_today"`
	IsSelected bool   `json:"is_selected"`
	HasEvents  bool   `json:"has_events"`
}

// Week returns the seven days centred on selected. today is the current
// date in the stream's timezone, supplied by the caller.
func Week(selected, today string) ([]Day, error) {
	center, err := time.Parse(timezone.DateLayout, selected)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidWindow, selected)
	}

	days := make([]Day, 0, 7)
	for i := -3; i <= 3; i++ {
		d := center.AddDate(0, 0, i)
		date := d.Format(timezone.DateLayout)
		days = append(days, Day{
			Date:       date,
			DayOfWeek:  d.Format("Mon"),
			DayOfMonth: d.Day(),
			IsToday:    date == today,
			IsSelected: i == 0,
		})
	}
	return days, nil
}
