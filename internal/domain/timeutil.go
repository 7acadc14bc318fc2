package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of run dates in job files and input paths.
	DateLayout = "2006-01-02"

	// WallClockLayout renders stored timestamps.
	WallClockLayout = "2006-01-02 15:04:05"

	// localOffset is the fixed UTC+05:30 presentation offset.
	localOffset = 5*time.Hour + 30*time.Minute

	timeUnitsPrefix = "minutes since "
)

// ToLocal converts t to the UTC+05:30 wall clock, shifted by an extra
// shiftMinutes. The result is UTC-located: its fields read as local time.
func ToLocal(t time.Time, shiftMinutes int) time.Time {
	return t.UTC().Add(localOffset + time.Duration(shiftMinutes)*time.Minute)
}

// ParseTimeUnits extracts the origin from a "minutes since <ISO-8601>" units
// string. The origin is interpreted as UTC.
func ParseTimeUnits(units string) (time.Time, error) {
	units = strings.TrimSpace(units)
	if !strings.HasPrefix(units, timeUnitsPrefix) {
		return time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	ref := strings.TrimSpace(strings.TrimPrefix(units, timeUnitsPrefix))

	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04",
		DateLayout,
	} {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time origin %q", ref)
}

// DecodeTimes converts minute offsets into absolute UTC timestamps using the
// origin in units. Fractional minutes are rounded to the nearest second.
func DecodeTimes(units string, offsets []float64) ([]time.Time, error) {
	origin, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(offsets))
	for i, m := range offsets {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("invalid time offset at index %d", i)
		}
		times[i] = origin.Add(time.Duration(math.Round(m*60)) * time.Second)
	}
	return times, nil
}
