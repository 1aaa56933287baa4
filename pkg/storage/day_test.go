package storage

import (
	"testing"
	"time"
)

func TestParseUTCOffset(t *testing.T) {
	tests := map[string]time.Duration{
		"+00:00": 0,
		"+08:00": 8 * time.Hour,
		"-05:30": -(5*time.Hour + 30*time.Minute),
	}

	for in, want := range tests {
		got, err := ParseUTCOffset(in)
		if err != nil {
			t.Fatalf("ParseUTCOffset(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseUTCOffset(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"8h", "+8:00", "+15:00", "+08:60", ""} {
		if _, err := ParseUTCOffset(bad); err == nil {
			t.Errorf("ParseUTCOffset(%q): expected error", bad)
		}
	}
}

func TestDayStartAndParseDay(t *testing.T) {
	offset := 8 * time.Hour
	want := time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC)

	if got := DayStart(time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC), offset); !got.Equal(time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("DayStart after local midnight = %v", got)
	}
	if got := DayStart(time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC), offset); !got.Equal(want) {
		t.Errorf("DayStart at local midnight = %v, want %v", got, want)
	}

	got, err := ParseDay("2024-05-01", offset)
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("ParseDay = %v, want %v", got, want)
	}

	if _, err := ParseDay("05/01/2024", offset); err == nil {
		t.Error("expected error for bad date")
	}
}
