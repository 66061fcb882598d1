package webui

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/clips"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/config"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/health"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timeline"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/visitor"
)

// Server serves the dashboard API and the built frontend
type Server struct {
	config   *config.Config
	logger   *log.Logger
	streams  map[string]*stream
	ids      []string
	span     timeline.Span
	detector *visitor.Detector
	monitor  *health.Monitor
	now      func() time.Time
}

// stream is a configured camera with its resolved timezone
type stream struct {
	id    string
	cfg   config.StreamConfig
	tz    string
	store *clips.Store
}

// Option customizes a Server
type Option func(*Server)

// WithClock replaces the wall clock used for "today" and the now marker
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithDetector replaces the visitor timezone detector
func WithDetector(d *visitor.Detector) Option {
	return func(s *Server) { s.detector = d }
}

// NewServer creates a new web server for the configured streams
func NewServer(cfg *config.Config, version string, opts ...Option) (*Server, error) {
	span, err := timeline.ParseSpan(cfg.Timeline.WindowHours)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		logger:  log.New(os.Stdout, "[WebUI] ", log.LstdFlags),
		streams: make(map[string]*stream, len(cfg.Streams)),
		span:    span,
		now:     time.Now,
	}

	for id, sc := range cfg.Streams {
		tz, loc := s.resolveTimezone(id, sc.Timezone)
		s.streams[id] = &stream{
			id:    id,
			cfg:   sc,
			tz:    tz,
			store: clips.NewStore(id, sc.DataPath, loc),
		}
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	s.monitor = health.NewMonitor(version, cfg.Env)
	for _, id := range s.ids {
		s.monitor.RegisterStream(id, cfg.Streams[id].DataPath)
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector, err = newDetector(cfg.Visitor)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// resolveTimezone falls back to the default zone when a stream's zone is
// missing or unknown
func (s *Server) resolveTimezone(id, name string) (string, *time.Location) {
	loc, err := timezone.Load(name)
	if err == nil {
		return name, loc
	}
	if name != "" {
		s.logger.Printf("Stream %s: %v, using %s", id, err, s.config.Timeline.DefaultTimezone)
	}

	name = s.config.Timeline.DefaultTimezone
	if loc, err = timezone.Load(name); err != nil {
		return "UTC", time.UTC
	}
	return name, loc
}

func newDetector(cfg config.VisitorConfig) (*visitor.Detector, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	client := &http.Client{Timeout: timeout}

	providers := make([]visitor.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		p, err := visitor.NewProvider(name, client)
		if err != nil {
			return nil, fmt.Errorf("visitor: %w", err)
		}
		providers = append(providers, p)
	}
	return visitor.NewDetector(timeout, providers...), nil
}

// Monitor returns the health monitor backing /health
func (s *Server) Monitor() *health.Monitor {
	return s.monitor
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.monitor.HTTPHandler())

	r.Route(s.config.Server.APIPrefix, func(r chi.Router) {
		r.Get("/health", s.monitor.HTTPHandler())
		r.Get("/streams", s.handleStreams)
		r.Route("/streams/{id}", func(r chi.Router) {
			r.Get("/", s.handleStream)
			r.Get("/events", s.handleEvents)
			r.Get("/stats", s.handleStats)
			r.Get("/dates-with-events", s.handleDatesWithEvents)
			r.Get("/week", s.handleWeek)
			r.Get("/timeline", s.handleTimeline)
		})
		r.Get("/visitor/timezone", s.handleVisitorTimezone)
		r.Get("/clips/{id}/{date}/{filename}", s.handleClip)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	})

	s.mountStatic(r)
	return r
}

// lookup resolves the {id} URL parameter, writing a 404 when unknown
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*stream, bool) {
	id := chi.URLParam(r, "id")
	st, ok := s.streams[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Stream '%s' not found", id))
		return nil, false
	}
	return st, true
}

// today is the current date in the stream's timezone
func (s *Server) today(st *stream) string {
	return timezone.Date(s.now(), st.store.Location())
}

// fail maps store and engine errors onto HTTP responses
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clips.ErrInvalidDate),
		errors.Is(err, clips.ErrInvalidFilename),
		errors.Is(err, clips.ErrInvalidRange),
		errors.Is(err, timeline.ErrInvalidWindow),
		errors.Is(err, timezone.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, clips.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, clips.ErrNoClipsDir):
		writeError(w, http.StatusNotFound, "No clips recorded for this stream")
	case errors.Is(err, clips.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Printf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
