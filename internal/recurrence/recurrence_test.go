package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		current  time.Time
		typ      string
		interval int
		want     time.Time
	}{
		{"daily", date(2026, time.January, 10), Daily, 1, date(2026, time.January, 11)},
		{"daily interval 3", date(2026, time.January, 10), Daily, 3, date(2026, time.January, 13)},
		{"weekly", date(2026, time.January, 10), Weekly, 1, date(2026, time.January, 17)},
		{"weekly interval 2", date(2026, time.January, 10), Weekly, 2, date(2026, time.January, 24)},
		{"monthly", date(2026, time.March, 15), Monthly, 1, date(2026, time.April, 15)},
		{"monthly year rollover", date(2026, time.November, 20), Monthly, 3, date(2027, time.February, 20)},
		{"monthly day clamp", date(2026, time.January, 31), Monthly, 1, date(2026, time.February, 28)},
		{"monthly day clamp leap", date(2028, time.January, 31), Monthly, 1, date(2028, time.February, 29)},
		{"monthly 30th into february", date(2026, time.January, 30), Monthly, 1, date(2026, time.February, 28)},
		{"yearly", date(2026, time.June, 1), Yearly, 1, date(2027, time.June, 1)},
		{"yearly leap day clamp", date(2028, time.February, 29), Yearly, 1, date(2029, time.February, 28)},
		{"unknown type falls back to daily", date(2026, time.January, 10), "fortnightly", 1, date(2026, time.January, 11)},
		{"zero interval treated as one", date(2026, time.January, 10), Daily, 0, date(2026, time.January, 11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.current, tt.typ, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v, %q, %d) = %v, want %v", tt.current, tt.typ, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNextPreservesTimeOfDay(t *testing.T) {
	current := time.Date(2026, time.January, 31, 14, 45, 30, 0, time.UTC)
	got := Next(current, Monthly, 1)
	if got.Hour() != 14 || got.Minute() != 45 || got.Second() != 30 {
		t.Errorf("time of day not preserved: %v", got)
	}
}

func TestNextOccurrence(t *testing.T) {
	current := date(2026, time.January, 10)

	t.Run("nil rule", func(t *testing.T) {
		if _, ok := NextOccurrence(nil, current); ok {
			t.Error("expected no occurrence for nil rule")
		}
	})

	t.Run("empty type", func(t *testing.T) {
		if _, ok := NextOccurrence(&Rule{}, current); ok {
			t.Error("expected no occurrence for empty type")
		}
	})

	t.Run("active rule", func(t *testing.T) {
		next, ok := NextOccurrence(&Rule{Type: Weekly}, current)
		if !ok {
			t.Fatal("expected an occurrence")
		}
		if want := date(2026, time.January, 17); !next.Equal(want) {
			t.Errorf("next = %v, want %v", next, want)
		}
	})

	t.Run("end date reached", func(t *testing.T) {
		end := date(2026, time.January, 12)
		if _, ok := NextOccurrence(&Rule{Type: Weekly, EndDate: &end}, current); ok {
			t.Error("expected rule past end date to yield no occurrence")
		}
	})

	t.Run("end date not yet reached", func(t *testing.T) {
		end := date(2026, time.December, 31)
		next, ok := NextOccurrence(&Rule{Type: Daily, Interval: 2, EndDate: &end}, current)
		if !ok {
			t.Fatal("expected an occurrence")
		}
		if want := date(2026, time.January, 12); !next.Equal(want) {
			t.Errorf("next = %v, want %v", next, want)
		}
	})
}
