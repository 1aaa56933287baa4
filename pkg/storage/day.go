package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var utcOffset = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// ParseUTCOffset parses "+HH:MM" or "-HH:MM".
func ParseUTCOffset(s string) (time.Duration, error) {
	m := utcOffset.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("utc offset %q must look like +08:00", s)
	}

	// the pattern guarantees two digits each
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("utc offset %q out of range", s)
	}

	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[1] == "-" {
		offset = -offset
	}
	return offset, nil
}

// DayStart returns the UTC instant of the local midnight that starts t's day
// at a fixed offset. Daily rows are keyed by this instant.
func DayStart(t time.Time, offset time.Duration) time.Time {
	local := t.UTC().Add(offset)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(-offset)
}

// ParseDay parses a YYYY-MM-DD local date into its DayStart instant.
func ParseDay(s string, offset time.Duration) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("day %q must look like 2006-01-02: %w", s, err)
	}
	return d.Add(-offset), nil
}
