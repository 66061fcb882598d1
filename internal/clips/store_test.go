package clips

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/event"
)

const sidecar = `[
	{
		"id": "20260114_072315",
		"start_time": "2026-01-14T07:23:15-05:00",
		"end_time": "2026-01-14T07:45:30-05:00",
		"duration_seconds": 1335,
		"peak_confidence": 0.847,
		"thumbnail_path": "falcon_072315_arrival.jpg",
		"arrival_clip_path": "falcon_072315_arrival.mp4",
		"departure_clip_path": "falcon_074530_departure.mp4"
	}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	dataPath := t.TempDir()
	clipsDir := filepath.Join(dataPath, "clips")

	day := filepath.Join(clipsDir, "2026-01-14")
	writeFile(t, filepath.Join(day, "falcon_072315_arrival.mp4"), "video")
	writeFile(t, filepath.Join(day, "falcon_072315_arrival.jpg"), "thumb")
	writeFile(t, filepath.Join(day, "falcon_074530_departure.mp4"), "video")
	writeFile(t, filepath.Join(day, "falcon_030000_visit.mp4"), "video")
	writeFile(t, filepath.Join(day, "falcon_080000_arrival.mp4.tmp"), "partial")
	writeFile(t, filepath.Join(day, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(day, "events_2026-01-14.json"), sidecar)

	writeFile(t, filepath.Join(clipsDir, "2026-01-10", "falcon_120000_visit.mp4"), "video")
	if err := os.MkdirAll(filepath.Join(clipsDir, "2026-01-12"), 0755); err != nil {
		t.Fatalf("Failed to create empty date dir: %v", err)
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load timezone: %v", err)
	}
	return NewStore("harvard", dataPath, loc), clipsDir
}

func TestLoadEvents(t *testing.T) {
	store, _ := setupStore(t)

	events, err := store.LoadEvents(context.Background(), "2026-01-14")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}

	arrival := events[0]
	if arrival.ID != "20260114_072315" || arrival.Type != event.Arrival {
		t.Errorf("Unexpected first event: %+v", arrival)
	}
	if got := arrival.Timestamp.Format(time.RFC3339); got != "2026-01-14T07:23:15-05:00" {
		t.Errorf("Expected stream-local timestamp, got %s", got)
	}
	if arrival.Thumbnail != "falcon_072315_arrival.jpg" {
		t.Errorf("Expected thumbnail, got %q", arrival.Thumbnail)
	}
	if arrival.Duration == nil || *arrival.Duration != 1335 {
		t.Errorf("Expected sidecar duration 1335, got %v", arrival.Duration)
	}
	if arrival.Confidence != 0.847 {
		t.Errorf("Expected sidecar confidence, got %v", arrival.Confidence)
	}

	departure := events[1]
	if departure.Type != event.Departure || departure.Thumbnail != "" {
		t.Errorf("Unexpected departure: %+v", departure)
	}
	if departure.Duration == nil || *departure.Duration != 0 {
		t.Errorf("Expected zero departure duration, got %v", departure.Duration)
	}
}

func TestLoadEventsMissingDate(t *testing.T) {
	store, _ := setupStore(t)

	events, err := store.LoadEvents(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", events)
	}

	if _, err := store.LoadEvents(context.Background(), "../etc"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
}

func TestLoadEventsBadSidecar(t *testing.T) {
	store, clipsDir := setupStore(t)
	writeFile(t, filepath.Join(clipsDir, "2026-01-14", "events_2026-01-14.json"), "{not json")

	events, err := store.LoadEvents(context.Background(), "2026-01-14")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 || *events[0].Duration != 0 {
		t.Errorf("Expected clips without sidecar data, got %+v", events)
	}
}

func TestMissingClipsDir(t *testing.T) {
	store := NewStore("empty", t.TempDir(), time.UTC)

	if _, err := store.LoadEvents(context.Background(), "2026-01-14"); !errors.Is(err, ErrNoClipsDir) {
		t.Errorf("Expected ErrNoClipsDir, got %v", err)
	}
	if _, _, err := store.MostRecentDate(context.Background(), "2026-01-14", 5); !errors.Is(err, ErrNoClipsDir) {
		t.Errorf("Expected ErrNoClipsDir, got %v", err)
	}
}

func TestMostRecentDate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	date, found, err := store.MostRecentDate(ctx, "2026-01-20", 30)
	if err != nil {
		t.Fatalf("MostRecentDate: %v", err)
	}
	if !found || date != "2026-01-14" {
		t.Errorf("Expected 2026-01-14, got %q found=%v", date, found)
	}

	// 2026-01-10 only has a visit clip, which does not count
	if _, found, err := store.MostRecentDate(ctx, "2026-01-13", 30); err != nil || found {
		t.Errorf("Expected no date before 2026-01-14, found=%v err=%v", found, err)
	}

	if _, found, _ := store.MostRecentDate(ctx, "2026-02-20", 30); found {
		t.Error("Expected search horizon to stop before 2026-01-14")
	}
}

func TestDatesWithEvents(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end string
		want       []string
	}{
		{"single day", "2026-01-14", "2026-01-14", []string{"2026-01-14"}},
		{"visit clips count", "2026-01-01", "2026-01-31", []string{"2026-01-10", "2026-01-14"}},
		{"no clips", "2026-01-01", "2026-01-05", []string{}},
		{"reversed range", "2026-01-31", "2026-01-01", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.DatesWithEvents(ctx, tt.start, tt.end)
			if err != nil {
				t.Fatalf("DatesWithEvents: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	if _, err := store.DatesWithEvents(ctx, "2026-1-1", "2026-01-05"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
}

func TestStats(t *testing.T) {
	store, clipsDir := setupStore(t)
	writeFile(t, filepath.Join(clipsDir, "2026-01-13", "falcon_220000_arrival.mp4"), "video")
	ctx := context.Background()

	stats, err := store.Stats(ctx, "2026-01-14", "24h")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Arrivals != 1 || stats.Departures != 1 || stats.Visits != 1 {
		t.Errorf("Unexpected 24h stats: %+v", stats.Counts)
	}
	if stats.LastEvent == nil || stats.LastEvent.ID != "20260114_074530" {
		t.Errorf("Unexpected last event: %+v", stats.LastEvent)
	}

	stats, err = store.Stats(ctx, "2026-01-14", "2d")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Arrivals != 2 || stats.Visits != 1 || stats.Range != "2d" {
		t.Errorf("Unexpected 2d stats: %+v", stats)
	}

	if _, err := store.Stats(ctx, "2026-01-14", "xd"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"24h", 1, false},
		{"", 1, false},
		{"3d", 3, false},
		{"30d", 30, false},
		{"week", 1, false},
		{"0d", 0, true},
		{"31d", 0, true},
		{"-2d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRange(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestClipPath(t *testing.T) {
	store, clipsDir := setupStore(t)

	path, err := store.ClipPath("2026-01-14", "falcon_072315_arrival.mp4")
	if err != nil {
		t.Fatalf("ClipPath: %v", err)
	}
	if want, _ := filepath.Abs(filepath.Join(clipsDir, "2026-01-14", "falcon_072315_arrival.mp4")); path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}

	tests := []struct {
		name     string
		date     string
		filename string
		want     error
	}{
		{"bad date", "2026-1-14", "falcon_072315_arrival.mp4", ErrInvalidDate},
		{"traversal date", "../../etc", "falcon_072315_arrival.mp4", ErrInvalidDate},
		{"bad filename", "2026-01-14", "passwd", ErrInvalidFilename},
		{"traversal filename", "2026-01-14", "../falcon_072315_arrival.mp4", ErrInvalidFilename},
		{"sidecar not served", "2026-01-14", "events_2026-01-14.json", ErrInvalidFilename},
		{"missing file", "2026-01-14", "falcon_999999_arrival.mp4", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.ClipPath(tt.date, tt.filename); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMediaType(t *testing.T) {
	if MediaType("falcon_072315_arrival.mp4") != "video/mp4" {
		t.Error("Expected video/mp4")
	}
	if MediaType("falcon_072315_arrival.jpg") != "image/jpeg" {
		t.Error("Expected image/jpeg")
	}
}
