package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DateLayout is the canonical calendar date format used across the viewer
const DateLayout = "2006-01-02"

// ErrInvalidTimezone is returned for names that are not IANA zone identifiers
var ErrInvalidTimezone = errors.New("invalid timezone")

// Load resolves an IANA zone identifier. Empty names and "Local" are rejected
// so that the host clock never leaks into date bucketing.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// DateIn returns the YYYY-MM-DD calendar date of t as seen in zone tz
func DateIn(t time.Time, tz string) (string, error) {
	loc, err := Load(tz)
	if err != nil {
		return "", err
	}
	return Date(t, loc), nil
}

// Date is DateIn for an already resolved location
func Date(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// TimeIn formats the wall clock of t in zone tz for display, e.g. "7:23:15 AM".
func TimeIn(t time.Time, tz string, withSeconds bool) (string, error) {
	loc, err := Load(tz)
	if err != nil {
		return "", err
	}
	return ClockFor(language.AmericanEnglish).Format(t.In(loc), withSeconds), nil
}

// Clock formats wall-clock times for a viewer locale
type Clock struct {
	Hour12 bool
}

// regions that conventionally read a 12-hour clock
var hour12Regions = map[string]bool{
	"US": true, "CA": true, "AU": true, "NZ": true, "IN": true,
	"PH": true, "PK": true, "EG": true, "SA": true, "MY": true,
}

// ClockFor picks the clock convention of a language tag. Tags without an
// explicit region use the most likely region for the language.
func ClockFor(tag language.Tag) Clock {
	region, _ := tag.Region()
	return Clock{Hour12: hour12Regions[region.String()]}
}

// Format renders t's wall clock without converting its location
func (c Clock) Format(t time.Time, withSeconds bool) string {
	switch {
	case c.Hour12 && withSeconds:
		return t.Format("3:04:05 PM")
	case c.Hour12:
		return t.Format("3:04 PM")
	case withSeconds:
		return t.Format("15:04:05")
	default:
		return t.Format("15:04")
	}
}
