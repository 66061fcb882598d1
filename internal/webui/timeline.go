package webui

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/clips"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timeline"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

type timelineEvent struct {
	timeline.Placement
	Time      string `json:"time"`                 // stream wall clock
	LocalTime string `json:"local_time,omitempty"` // viewer wall clock when tz is given
}

type windowCounts struct {
	Prev    int `json:"prev"`
	Current int `json:"current"`
	Next    int `json:"next"`
}

type timelineResponse struct {
	StreamID      string            `json:"stream_id"`
	Timezone      string            `json:"timezone"`
	WindowHours   int               `json:"window_hours"`
	Window        timeline.Window   `json:"window"`
	StartsAt      time.Time         `json:"starts_at"`
	EndsAt        time.Time         `json:"ends_at"`
	Prev          timeline.Window   `json:"prev"`
	Next          timeline.Window   `json:"next"`
	Markers       []timeline.Marker `json:"markers"`
	Now           *float64          `json:"now"`
	Events        []timelineEvent   `json:"events"`
	Counts        windowCounts      `json:"counts"`
	SelectedEvent string            `json:"selected_event,omitempty"`
}

// dayCache loads each date's events at most once per request
type dayCache struct {
	ctx   context.Context
	store *clips.Store
	days  map[string][]event.Event
}

func (c *dayCache) get(date string) ([]event.Event, error) {
	if events, ok := c.days[date]; ok {
		return events, nil
	}
	events, err := c.store.LoadEvents(c.ctx, date)
	if err != nil {
		return nil, err
	}
	c.days[date] = events
	return events, nil
}

// handleTimeline lays out one window of a stream's timeline.
//
// The window is chosen by, in order: the event query parameter (deep link to
// the window holding that event), date and start_hour, or the window
// containing now. When today has no events the window moves to the most
// recent day with events, on the page holding that day's latest event.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	loc := st.store.Location()
	clock := clockFor(r)
	cache := &dayCache{ctx: r.Context(), store: st.store, days: map[string][]event.Event{}}

	// An unknown viewer zone only costs the local_time labels
	var viewer *time.Location
	if tz := q.Get("tz"); tz != "" {
		var err error
		if viewer, err = timezone.Load(tz); err != nil {
			s.logger.Printf("Stream %s timeline: %v, omitting local times", st.id, err)
		}
	}

	nav := timeline.NewNavigator(s.now(), loc, s.span)
	var selected string

	switch {
	case q.Get("event") != "":
		ev, err := s.findEvent(cache, q.Get("event"))
		if err != nil {
			s.fail(w, err)
			return
		}
		nav.SelectEvent(ev)
		selected = ev.ID

	case q.Get("date") != "":
		if _, _, err := nav.SelectDate(q.Get("date")); err != nil {
			s.fail(w, err)
			return
		}
		if err := pageTo(nav, q.Get("start_hour")); err != nil {
			s.fail(w, err)
			return
		}

	default:
		today := nav.Window().Date
		events, err := cache.get(today)
		if err != nil {
			s.fail(w, err)
			return
		}
		if len(events) == 0 {
			recent, found, err := st.store.MostRecentDate(r.Context(), today, s.config.Timeline.SearchDays)
			if err != nil {
				s.fail(w, err)
				return
			}
			if found {
				if _, _, err := nav.Accept(recent); err != nil {
					s.fail(w, err)
					return
				}
				if events, err = cache.get(recent); err != nil {
					s.fail(w, err)
					return
				}
				if latest := event.Latest(events); latest != nil {
					nav.SelectEvent(*latest)
				}
			}
		}
	}

	win := nav.Window()
	prev := timeline.Advance(win, timeline.Backward, s.span)
	next := timeline.Advance(win, timeline.Forward, s.span)
	startsAt, endsAt, err := win.Bounds(loc, s.span)
	if err != nil {
		s.fail(w, err)
		return
	}

	positioner := timeline.Positioner{
		Span:        s.span,
		MinDuration: s.config.MinEventDuration(),
		Location:    loc,
	}

	resp := timelineResponse{
		StreamID:      st.id,
		Timezone:      st.tz,
		WindowHours:   int(s.span),
		Window:        win,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		Prev:          prev,
		Next:          next,
		Markers:       localizeMarkers(timeline.Markers(win, s.span), clock),
		Events:        []timelineEvent{},
		SelectedEvent: selected,
	}
	if left, ok := timeline.NowMarker(s.now(), win, loc, s.span); ok {
		resp.Now = &left
	}

	for _, target := range []struct {
		win   timeline.Window
		count *int
	}{{prev, &resp.Counts.Prev}, {win, &resp.Counts.Current}, {next, &resp.Counts.Next}} {
		events, err := cache.get(target.win.Date)
		if err != nil {
			s.fail(w, err)
			return
		}
		*target.count = positioner.Count(events, target.win)
	}

	events, err := cache.get(win.Date)
	if err != nil {
		s.fail(w, err)
		return
	}
	for _, p := range positioner.Layout(events, win) {
		te := timelineEvent{Placement: p, Time: clock.Format(p.Event.Timestamp.In(loc), false)}
		if viewer != nil {
			te.LocalTime = clock.Format(p.Event.Timestamp.In(viewer), false)
		}
		resp.Events = append(resp.Events, te)
	}

	writeJSON(w, r, resp)
}

// findEvent resolves an event ID of the form YYYYMMDD_HHMMSS
func (s *Server) findEvent(cache *dayCache, id string) (event.Event, error) {
	day, err := time.Parse("20060102", strings.SplitN(id, "_", 2)[0])
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: event %q", clips.ErrInvalidDate, id)
	}

	events, err := cache.get(day.Format(timezone.DateLayout))
	if err != nil {
		return event.Event{}, err
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return event.Event{}, fmt.Errorf("%w: event %q", clips.ErrNotFound, id)
}

// pageTo steps from the first window of the day to the one at startHour
func pageTo(nav *timeline.Navigator, startHour string) error {
	if startHour == "" {
		return nil
	}
	hour, err := strconv.Atoi(startHour)
	if err != nil {
		return fmt.Errorf("%w: start_hour %q", timeline.ErrInvalidWindow, startHour)
	}
	if _, err := timeline.NewWindow(nav.Window().Date, hour, nav.Span()); err != nil {
		return err
	}
	for nav.Window().StartHour != hour {
		nav.Step(timeline.Forward)
	}
	return nil
}

// clockFor picks 12 or 24 hour labels from Accept-Language
func clockFor(r *http.Request) timezone.Clock {
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return timezone.ClockFor(tags[0])
		}
	}
	return timezone.ClockFor(language.AmericanEnglish)
}

func localizeMarkers(markers []timeline.Marker, clock timezone.Clock) []timeline.Marker {
	if clock.Hour12 {
		return markers
	}
	for i := range markers {
		markers[i].Label = fmt.Sprintf("%02d:00", markers[i].Hour%24)
	}
	return markers
}
