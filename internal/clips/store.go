package clips

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

var (
	ErrNoClipsDir      = errors.New("clips directory not found")
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidRange    = errors.New("invalid range")
	ErrForbidden       = errors.New("access denied")
	ErrNotFound        = errors.New("file not found")
)

// DefaultSearchDays bounds the backwards search for a day with events
const DefaultSearchDays = 30

// maxRangeDays caps dates-with-events queries
const maxRangeDays = 366

var (
	// falcon_HHMMSS_type.ext video clips; .tmp and other partial files never match
	videoPattern = regexp.MustCompile(`^falcon_(\d{6})_(arrival|departure|visit)\.(mp4|avi|mov|mkv)$`)
	// files the clip endpoint is allowed to serve
	servePattern = regexp.MustCompile(`^falcon_\d{6}_(arrival|departure|visit)\.(mp4|jpg)$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var tracer = otel.Tracer("github.com/sageframe-no-kaji/kanyo-viewer/internal/clips")

// Store reads one stream's clip tree: <data_path>/clips/YYYY-MM-DD/falcon_HHMMSS_type.mp4
type Store struct {
	stream   string
	clipsDir string
	loc      *time.Location
	logger   *log.Logger
}

// NewStore creates a store for a stream whose clips live under dataPath
func NewStore(stream, dataPath string, loc *time.Location) *Store {
	return &Store{
		stream:   stream,
		clipsDir: filepath.Join(dataPath, "clips"),
		loc:      loc,
		logger:   log.New(os.Stdout, fmt.Sprintf("[Clips %s] ", stream), log.LstdFlags),
	}
}

// Location returns the stream's timezone
func (s *Store) Location() *time.Location {
	return s.loc
}

// ClipsDir returns the clips root, failing when it does not exist
func (s *Store) ClipsDir() (string, error) {
	info, err := os.Stat(s.clipsDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoClipsDir, s.clipsDir)
	}
	return s.clipsDir, nil
}

func (s *Store) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("kanyo.stream", s.stream))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LoadEvents lists the arrival and departure clips recorded on date, in
// timestamp order. A date without a directory has no events.
func (s *Store) LoadEvents(ctx context.Context, date string) (events []event.Event, err error) {
	_, span := s.startSpan(ctx, "clips.LoadEvents", attribute.String("kanyo.date", date))
	defer func() { endSpan(span, err) }()

	if err := validateDate(date); err != nil {
		return nil, err
	}
	clipsDir, err := s.ClipsDir()
	if err != nil {
		return nil, err
	}

	dateDir := filepath.Join(clipsDir, date)
	entries, err := os.ReadDir(dateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []event.Event{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dateDir, err)
	}

	visits := s.loadVisits(dateDir, date)
	day, _ := time.Parse(timezone.DateLayout, date)

	events = []event.Event{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := videoPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		clipType := event.Type(m[2])
		if clipType == event.Visit {
			continue
		}

		ev := event.Event{
			ID:        strings.ReplaceAll(date, "-", "") + "_" + m[1],
			Type:      clipType,
			Timestamp: clipTime(day, m[1], s.loc),
			Duration:  event.Seconds(0),
			Clip:      entry.Name(),
		}

		thumb := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())) + ".jpg"
		if _, err := os.Stat(filepath.Join(dateDir, thumb)); err == nil {
			ev.Thumbnail = thumb
		}

		if v, ok := visits[entry.Name()]; ok {
			if clipType == event.Arrival && v.DurationSeconds != nil && *v.DurationSeconds >= 0 {
				ev.Duration = event.Seconds(*v.DurationSeconds)
			}
			if v.PeakConfidence != nil {
				ev.Confidence = *v.PeakConfidence
			}
		}

		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	span.SetAttributes(attribute.Int("kanyo.events", len(events)))
	return events, nil
}

// loadVisits indexes the optional sidecar by clip filename. A malformed
// sidecar is logged and ignored; the clip files remain the source of truth.
func (s *Store) loadVisits(dateDir, date string) map[string]event.VisitRecord {
	index := map[string]event.VisitRecord{}

	data, err := os.ReadFile(filepath.Join(dateDir, "events_"+date+".json"))
	if err != nil {
		return index
	}
	visits, err := event.DecodeVisits(data)
	if err != nil {
		s.logger.Printf("Ignoring sidecar for %s: %v", date, err)
		return index
	}

	for _, v := range visits {
		if v.ArrivalClipPath != "" {
			index[filepath.Base(v.ArrivalClipPath)] = v
		}
		if v.DepartureClipPath != "" {
			index[filepath.Base(v.DepartureClipPath)] = v
		}
	}
	return index
}

// clipTime localizes HHMMSS on day in the stream's timezone
func clipTime(day time.Time, hhmmss string, loc *time.Location) time.Time {
	hour, _ := strconv.Atoi(hhmmss[0:2])
	minute, _ := strconv.Atoi(hhmmss[2:4])
	second, _ := strconv.Atoi(hhmmss[4:6])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, loc)
}

// MostRecentDate walks back from date up to days days and returns the first
// date that has arrival or departure events
func (s *Store) MostRecentDate(ctx context.Context, from string, days int) (date string, found bool, err error) {
	ctx, span := s.startSpan(ctx, "clips.MostRecentDate", attribute.String("kanyo.from", from))
	defer func() { endSpan(span, err) }()

	if days <= 0 {
		days = DefaultSearchDays
	}
	if _, err := s.ClipsDir(); err != nil {
		return "", false, err
	}

	current := from
	for i := 0; i < days; i++ {
		events, err := s.LoadEvents(ctx, current)
		if err != nil {
			return "", false, err
		}
		if len(events) > 0 {
			return current, true, nil
		}
		if current, err = shiftDate(current, -1); err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}

// DatesWithEvents returns the dates in [start, end] whose directory holds at
// least one clip of any type
func (s *Store) DatesWithEvents(ctx context.Context, start, end string) (dates []string, err error) {
	_, span := s.startSpan(ctx, "clips.DatesWithEvents",
		attribute.String("kanyo.start", start), attribute.String("kanyo.end", end))
	defer func() { endSpan(span, err) }()

	if err := validateDate(start); err != nil {
		return nil, err
	}
	if err := validateDate(end); err != nil {
		return nil, err
	}
	clipsDir, err := s.ClipsDir()
	if err != nil {
		return nil, err
	}

	dates = []string{}
	current := start
	for i := 0; current <= end && i < maxRangeDays; i++ {
		if hasClips(filepath.Join(clipsDir, current)) {
			dates = append(dates, current)
		}
		if current, err = shiftDate(current, 1); err != nil {
			return nil, err
		}
	}
	return dates, nil
}

func hasClips(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && videoPattern.MatchString(entry.Name()) {
			return true
		}
	}
	return false
}

// Stats summarizes the days ending on today
type Stats struct {
	event.Counts
	LastEvent *event.Event `json:"last_event"`
	Range     string       `json:"range"`
}

// ParseRange converts "24h" or "Nd" into a day count. Unknown forms count as
// one day; "Nd" with N outside 1..30 is rejected.
func ParseRange(r string) (int, error) {
	if r == "" || r == "24h" {
		return 1, nil
	}
	if !strings.HasSuffix(r, "d") {
		return 1, nil
	}
	days, err := strconv.Atoi(strings.TrimSuffix(r, "d"))
	if err != nil || days < 1 || days > DefaultSearchDays {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, r)
	}
	return days, nil
}

// Stats counts events over the range ending on today
func (s *Store) Stats(ctx context.Context, today, rangeStr string) (stats Stats, err error) {
	ctx, span := s.startSpan(ctx, "clips.Stats", attribute.String("kanyo.range", rangeStr))
	defer func() { endSpan(span, err) }()

	days, err := ParseRange(rangeStr)
	if err != nil {
		return Stats{}, err
	}
	if _, err := s.ClipsDir(); err != nil {
		return Stats{}, err
	}
	if rangeStr == "" {
		rangeStr = "24h"
	}

	var all []event.Event
	current := today
	for i := 0; i < days; i++ {
		events, err := s.LoadEvents(ctx, current)
		if err != nil {
			return Stats{}, err
		}
		all = append(all, events...)
		if current, err = shiftDate(current, -1); err != nil {
			return Stats{}, err
		}
	}

	return Stats{Counts: event.Count(all), LastEvent: event.Latest(all), Range: rangeStr}, nil
}

// ClipPath resolves a clip or thumbnail inside the clips tree
func (s *Store) ClipPath(date, filename string) (string, error) {
	if !datePattern.MatchString(date) {
		return "", ErrInvalidDate
	}
	if !servePattern.MatchString(filename) {
		return "", ErrInvalidFilename
	}
	clipsDir, err := s.ClipsDir()
	if err != nil {
		return "", err
	}

	absBase, err := filepath.Abs(clipsDir)
	if err != nil {
		return "", ErrForbidden
	}
	absPath, err := filepath.Abs(filepath.Join(clipsDir, date, filename))
	if err != nil || !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", ErrForbidden
	}

	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return absPath, nil
}

// MediaType returns the content type served for a clip filename
func MediaType(filename string) string {
	if strings.HasSuffix(filename, ".mp4") {
		return "video/mp4"
	}
	return "image/jpeg"
}

func validateDate(date string) error {
	if _, err := time.Parse(timezone.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

func shiftDate(date string, days int) (string, error) {
	d, err := time.Parse(timezone.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return d.AddDate(0, 0, days).Format(timezone.DateLayout), nil
}
