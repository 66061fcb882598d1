package webui

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/clips"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/config"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timeline"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/visitor"
)

// streamSummary is the stream card shown on the landing page
type streamSummary struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Display         config.DisplayConfig `json:"display"`
	YouTubeID       string               `json:"youtube_id"`
	Timezone        string               `json:"timezone"`
	TelegramChannel string               `json:"telegram_channel,omitempty"`
	Stats           daySummary           `json:"stats"`
}

type daySummary struct {
	Date *string `json:"date"`
	event.Counts
	LastEvent *event.Event `json:"last_event"`
}

type streamDetail struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Display         config.DisplayConfig `json:"display"`
	YouTubeID       string               `json:"youtube_id"`
	Timezone        string               `json:"timezone"`
	TelegramChannel string               `json:"telegram_channel,omitempty"`
	Stats           clips.Stats          `json:"stats"`
}

// handleStreams lists every stream with today's counts, or the most recent
// day's when nothing has happened yet today. Streams whose clip tree cannot
// be read are left out.
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	streams := make([]streamSummary, 0, len(s.ids))

	for _, id := range s.ids {
		st := s.streams[id]
		summary, err := s.summarize(r, st)
		if err != nil {
			s.logger.Printf("Skipping stream %s: %v", id, err)
			continue
		}
		streams = append(streams, streamSummary{
			ID:              id,
			Name:            st.cfg.Name,
			Display:         st.cfg.Display,
			YouTubeID:       st.cfg.YouTubeID,
			Timezone:        st.tz,
			TelegramChannel: st.cfg.TelegramChannel,
			Stats:           summary,
		})
	}

	writeJSON(w, r, map[string]any{"streams": streams})
}

func (s *Server) summarize(r *http.Request, st *stream) (daySummary, error) {
	ctx := r.Context()
	date := s.today(st)

	events, err := st.store.LoadEvents(ctx, date)
	if err != nil {
		return daySummary{}, err
	}
	if len(events) == 0 {
		recent, found, err := st.store.MostRecentDate(ctx, date, s.config.Timeline.SearchDays)
		if err != nil {
			return daySummary{}, err
		}
		if !found {
			return daySummary{Counts: event.Counts{}}, nil
		}
		date = recent
		if events, err = st.store.LoadEvents(ctx, date); err != nil {
			return daySummary{}, err
		}
	}

	return daySummary{Date: &date, Counts: event.Count(events), LastEvent: event.Latest(events)}, nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	stats, err := st.store.Stats(r.Context(), s.today(st), "24h")
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, r, streamDetail{
		ID:              st.id,
		Name:            st.cfg.Name,
		Display:         st.cfg.Display,
		YouTubeID:       st.cfg.YouTubeID,
		Timezone:        st.tz,
		TelegramChannel: st.cfg.TelegramChannel,
		Stats:           stats,
	})
}

// handleEvents returns one day's events. When the date is omitted or has no
// events it picks the most recent day that has any, reporting a null date
// when there is none.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if date := r.URL.Query().Get("date"); date != "" {
		events, err := st.store.LoadEvents(ctx, date)
		if err != nil {
			s.fail(w, err)
			return
		}
		if len(events) > 0 {
			writeJSON(w, r, map[string]any{"stream_id": st.id, "date": date, "events": events})
			return
		}
	}

	recent, found, err := st.store.MostRecentDate(ctx, s.today(st), s.config.Timeline.SearchDays)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !found {
		writeJSON(w, r, map[string]any{"stream_id": st.id, "date": nil, "events": []event.Event{}})
		return
	}

	events, err := st.store.LoadEvents(ctx, recent)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"stream_id": st.id, "date": recent, "events": events})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	stats, err := st.store.Stats(r.Context(), s.today(st), r.URL.Query().Get("range"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, r, struct {
		StreamID string `json:"stream_id"`
		clips.Stats
	}{st.id, stats})
}

func (s *Server) handleDatesWithEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start_date and end_date parameters required")
		return
	}

	dates, err := st.store.DatesWithEvents(r.Context(), start, end)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"stream_id": st.id, "dates": dates})
}

// handleWeek returns the week strip around date, defaulting to today
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	today := s.today(st)
	date := r.URL.Query().Get("date")
	if date == "" {
		date = today
	}

	days, err := timeline.Week(date, today)
	if err != nil {
		s.fail(w, err)
		return
	}

	dates, err := st.store.DatesWithEvents(r.Context(), days[0].Date, days[len(days)-1].Date)
	if err != nil {
		s.fail(w, err)
		return
	}
	has := make(map[string]bool, len(dates))
	for _, d := range dates {
		has[d] = true
	}
	for i := range days {
		days[i].HasEvents = has[days[i].Date]
	}

	writeJSON(w, r, map[string]any{"stream_id": st.id, "date": date, "today": today, "days": days})
}

func (s *Server) handleVisitorTimezone(w http.ResponseWriter, r *http.Request) {
	if !s.config.Visitor.Enabled {
		writeJSON(w, r, visitor.Result{IP: visitor.ClientIP(r)})
		return
	}
	writeJSON(w, r, s.detector.Detect(r.Context(), r))
}

// handleClip serves a clip or thumbnail from a stream's clip tree
func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	filename := chi.URLParam(r, "filename")
	path, err := st.store.ClipPath(chi.URLParam(r, "date"), filename)
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", clips.MediaType(filename))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
