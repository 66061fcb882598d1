// Package event defines the detection event record shared by the clip store,
// the timeline engine and the HTTP API.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of detection a clip captured
type Type string

const (
	Arrival   Type = "arrival"
	Departure Type = "departure"
	Visit     Type = "visit"
)

// Event is a detected arrival or departure. Duration is nil when the source
// did not report one; a nil Duration or a zero Timestamp marks the event as
// unplaceable on the timeline.
type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Duration   *float64  `json:"duration"` // seconds
	Thumbnail  string    `json:"thumbnail"`
	Clip       string    `json:"clip"`
	Confidence float64   `json:"confidence"`
}

// Seconds returns a duration pointer for literal construction
func Seconds(s float64) *float64 {
	return &s
}

// Placeable reports whether the event carries the fields positioning needs
func (e Event) Placeable() bool {
	return !e.Timestamp.IsZero() && e.Duration != nil && *e.Duration >= 0
}

// Counts tallies arrivals and departures; visits pair them up
type Counts struct {
	Arrivals   int `json:"arrivals"`
	Departures int `json:"departures"`
	Visits     int `json:"visits"`
}

// Count tallies events by type
func Count(events []Event) Counts {
	var c Counts
	for _, e := range events {
		switch e.Type {
		case Arrival:
			c.Arrivals++
		case Departure:
			c.Departures++
		}
	}
	c.Visits = min(c.Arrivals, c.Departures)
	return c
}

// Latest returns the event with the greatest timestamp, or nil
func Latest(events []Event) *Event {
	var latest *Event
	for i := range events {
		if latest == nil || events[i].Timestamp.After(latest.Timestamp) {
			latest = &events[i]
		}
	}
	return latest
}

// VisitRecord is one record of the detector's events_<date>.json sidecar
type VisitRecord struct {
	ID                string
	Start             time.Time
	End               time.Time
	DurationSeconds   *float64
	PeakConfidence    *float64
	ThumbnailPath     string
	ArrivalClipPath   string
	DepartureClipPath string
}

// rawVisit mirrors the sidecar JSON loosely so that a single bad field does
// not discard the whole file
type rawVisit struct {
	ID                json.RawMessage `json:"id"`
	StartTime         json.RawMessage `json:"start_time"`
	EndTime           json.RawMessage `json:"end_time"`
	DurationSeconds   json.RawMessage `json:"duration_seconds"`
	PeakConfidence    json.RawMessage `json:"peak_confidence"`
	ThumbnailPath     json.RawMessage `json:"thumbnail_path"`
	ArrivalClipPath   json.RawMessage `json:"arrival_clip_path"`
	DepartureClipPath json.RawMessage `json:"departure_clip_path"`
}

// DecodeVisits parses a sidecar file. Fields that are missing or of the wrong
// type are left empty; only a document that is not a JSON array fails.
func DecodeVisits(data []byte) ([]VisitRecord, error) {
	var raws []rawVisit
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding visits: %w", err)
	}

	visits := make([]VisitRecord, 0, len(raws))
	for _, raw := range raws {
		visits = append(visits, VisitRecord{
			ID:                decodeString(raw.ID),
			Start:             decodeTime(raw.StartTime),
			End:               decodeTime(raw.EndTime),
			DurationSeconds:   decodeNumber(raw.DurationSeconds),
			PeakConfidence:    decodeNumber(raw.PeakConfidence),
			ThumbnailPath:     decodeString(raw.ThumbnailPath),
			ArrivalClipPath:   decodeString(raw.ArrivalClipPath),
			DepartureClipPath: decodeString(raw.DepartureClipPath),
		})
	}
	return visits, nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeNumber(raw json.RawMessage) *float64 {
	var f float64
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return &f
}

func decodeTime(raw json.RawMessage) time.Time {
	s := decodeString(raw)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
