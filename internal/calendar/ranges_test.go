package calendar

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestStartOfWeek(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"2025-07-01", "2025-06-30"}, // Tuesday
		{"2025-06-30", "2025-06-30"}, // Monday
		{"2025-07-06", "2025-06-30"}, // Sunday belongs to the week before
	}
	for _, tt := range tests {
		in := mustParse(t, tt.in)
		if got := StartOfWeek(in).Format("2006-01-02"); got != tt.want {
			t.Fatalf("StartOfWeek(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestHolidaysInSpanSkipsWeekendHolidays(t *testing.T) {
	t.Parallel()
	c := mustCalendar(t, "XX")
	got := c.HolidaysInSpan(Day(2025, 12, 20), Day(2025, 12, 31))
	if len(got) != 1 || got[0].Name != "Christmas Day" {
		t.Fatalf("HolidaysInSpan = %+v, want only Christmas Day", got)
	}
	if got := c.HolidaysInSpan(Day(2025, 7, 5), Day(2025, 7, 6)); len(got) != 0 {
		t.Fatalf("expected no holidays over a plain weekend, got %+v", got)
	}
}

func TestWeekBuckets(t *testing.T) {
	t.Parallel()
	c := mustCalendar(t, "XX")
	buckets := c.WeekBuckets(Day(2025, 7, 1), Day(2025, 7, 15))
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3", len(buckets))
	}
	if !buckets[0].Start.Equal(Day(2025, 6, 30)) {
		t.Fatalf("first bucket starts %s, want Monday 2025-06-30", buckets[0].Start.Format("2006-01-02"))
	}
	if !buckets[0].End.Equal(Day(2025, 7, 6)) {
		t.Fatalf("first bucket ends %s", buckets[0].End.Format("2006-01-02"))
	}
	if !buckets[0].HasHoliday || buckets[1].HasHoliday || buckets[2].HasHoliday {
		t.Fatalf("holiday flags = %v %v %v, want true false false",
			buckets[0].HasHoliday, buckets[1].HasHoliday, buckets[2].HasHoliday)
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i].Start.Equal(buckets[i-1].Start.AddDate(0, 0, 7)) {
			t.Fatalf("bucket %d is not consecutive", i)
		}
	}
}

func TestWeekBucketsSaturdayHolidayNotFlagged(t *testing.T) {
	t.Parallel()
	c := mustCalendar(t, "XX")
	// Week of 2025-12-29 has no weekday holiday; 2025-12-27 is a Saturday.
	buckets := c.WeekBuckets(Day(2025, 12, 27), Day(2025, 12, 27))
	if len(buckets) != 1 {
		t.Fatalf("len = %d, want 1", len(buckets))
	}
	// Week of 2025-12-22 contains Christmas on Thursday.
	if !buckets[0].HasHoliday {
		t.Fatal("week with a Thursday holiday should be flagged")
	}
	if len(buckets[0].Holidays) != 1 {
		t.Fatalf("Saturday holiday must not be listed, got %+v", buckets[0].Holidays)
	}
}

func TestWeekBucketsInvertedSpan(t *testing.T) {
	t.Parallel()
	c := mustCalendar(t, "ZZ")
	got := c.WeekBuckets(Day(2025, 7, 9), Day(2025, 7, 1))
	if len(got) != 1 || !got[0].Start.Equal(Day(2025, 7, 7)) {
		t.Fatalf("inverted span = %+v, want the single week of from", got)
	}
}
