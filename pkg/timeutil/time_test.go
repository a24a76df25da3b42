package timeutil

import (
	"testing"
	"time"
)

func TestNow_AlwaysUTC(t *testing.T) {
	now := Now()

	if now.Location() != time.UTC {
		t.Errorf("Now() returned non-UTC timezone: %v", now.Location())
	}
}

func TestStartOfDay(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "midnight UTC",
			input:    time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
		{
			name:     "late evening UTC",
			input:    time.Date(2025, 11, 20, 23, 59, 59, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
		{
			name:     "evening EST rolls into next UTC day",
			input:    time.Date(2025, 11, 20, 21, 0, 0, 0, est),
			expected: "2025-11-21 00:00:00 +0000 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StartOfDay(tt.input)

			if result.String() != tt.expected {
				t.Errorf("StartOfDay() = %v, want %v", result, tt.expected)
			}

			if result.Location() != time.UTC {
				t.Errorf("StartOfDay() returned non-UTC: %v", result.Location())
			}
		})
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(5 * time.Minute)
	if want := start.Add(5 * time.Minute); !clock.Now().Equal(want) {
		t.Errorf("after Advance Now() = %v, want %v", clock.Now(), want)
	}

	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Errorf("after Set Now() = %v, want %v", clock.Now(), start)
	}
}

func TestSystemClock_UTC(t *testing.T) {
	var c Clock = SystemClock{}
	if c.Now().Location() != time.UTC {
		t.Errorf("SystemClock.Now() returned non-UTC: %v", c.Now().Location())
	}
}
