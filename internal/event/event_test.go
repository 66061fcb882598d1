package event

import (
	"testing"
	"time"
)

func TestPlaceable(t *testing.T) {
	ts := time.Date(2026, 1, 14, 7, 23, 15, 0, time.UTC)

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"complete", Event{Timestamp: ts, Duration: Seconds(600)}, true},
		{"zero duration", Event{Timestamp: ts, Duration: Seconds(0)}, true},
		{"missing duration", Event{Timestamp: ts}, false},
		{"negative duration", Event{Timestamp: ts, Duration: Seconds(-1)}, false},
		{"missing timestamp", Event{Duration: Seconds(600)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Placeable(); got != tt.want {
				t.Errorf("Placeable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountAndLatest(t *testing.T) {
	base := time.Date(2026, 1, 14, 7, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "a", Type: Arrival, Timestamp: base},
		{ID: "b", Type: Departure, Timestamp: base.Add(2 * time.Hour)},
		{ID: "c", Type: Arrival, Timestamp: base.Add(time.Hour)},
	}

	c := Count(events)
	if c.Arrivals != 2 || c.Departures != 1 || c.Visits != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}

	latest := Latest(events)
	if latest == nil || latest.ID != "b" {
		t.Errorf("expected latest event b, got %+v", latest)
	}

	if Latest(nil) != nil {
		t.Error("expected nil latest for empty list")
	}
}

func TestDecodeVisits(t *testing.T) {
	data := []byte(`[
		{
			"id": "20260114_072315",
			"start_time": "2026-01-14T07:23:15-05:00",
			"end_time": "2026-01-14T07:45:30-05:00",
			"duration_seconds": 1335,
			"peak_confidence": 0.847,
			"thumbnail_path": "falcon_072315_arrival.jpg",
			"arrival_clip_path": "falcon_072315_arrival.mp4",
			"departure_clip_path": "falcon_074530_departure.mp4"
		},
		{
			"id": 42,
			"start_time": "yesterday",
			"duration_seconds": "long",
			"arrival_clip_path": "falcon_093000_arrival.mp4"
		}
	]`)

	visits, err := DecodeVisits(data)
	if err != nil {
		t.Fatalf("DecodeVisits: %v", err)
	}
	if len(visits) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(visits))
	}

	first := visits[0]
	if first.ID != "20260114_072315" {
		t.Errorf("unexpected id %q", first.ID)
	}
	if first.DurationSeconds == nil || *first.DurationSeconds != 1335 {
		t.Errorf("unexpected duration %v", first.DurationSeconds)
	}
	if first.PeakConfidence == nil || *first.PeakConfidence != 0.847 {
		t.Errorf("unexpected confidence %v", first.PeakConfidence)
	}
	if got := first.Start.UTC().Format(time.RFC3339); got != "2026-01-14T12:23:15Z" {
		t.Errorf("unexpected start %s", got)
	}

	second := visits[1]
	if second.ID != "" || !second.Start.IsZero() || second.DurationSeconds != nil {
		t.Errorf("malformed fields should be empty, got %+v", second)
	}
	if second.ArrivalClipPath != "falcon_093000_arrival.mp4" {
		t.Errorf("valid field lost: %+v", second)
	}
}

func TestDecodeVisitsNotArray(t *testing.T) {
	if _, err := DecodeVisits([]byte(`{"id": "x"}`)); err == nil {
		t.Error("expected error for non-array document")
	}
}
