package calendar

import "time"

// WeekBucket is one Monday-anchored, seven-day slice of a date span.
type WeekBucket struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	HasHoliday bool      `json:"has_holiday"`
	Holidays   []Holiday `json:"holidays,omitempty"`
}

// StartOfWeek returns the Monday of the week containing d.
func StartOfWeek(d time.Time) time.Time {
	d = Truncate(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// HolidaysInSpan lists the holidays in [from, to] that fall on a weekday.
// Weekend holidays are skipped: they never move a schedule.
func (c *Calendar) HolidaysInSpan(from, to time.Time) []Holiday {
	from, to = Truncate(from), Truncate(to)
	var out []Holiday
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) {
			continue
		}
		if h, ok := c.HolidayOn(d); ok {
			out = append(out, h)
		}
	}
	return out
}

// WeekBuckets partitions [from, to] into consecutive weeks starting at the Monday
// of the week containing from. Each bucket records the Monday-Friday holidays it
// contains. An inverted span yields the single week containing from.
func (c *Calendar) WeekBuckets(from, to time.Time) []WeekBucket {
	from, to = Truncate(from), Truncate(to)
	if to.Before(from) {
		to = from
	}
	var out []WeekBucket
	for ws := StartOfWeek(from); !ws.After(to); ws = ws.AddDate(0, 0, 7) {
		b := WeekBucket{Start: ws, End: ws.AddDate(0, 0, 6)}
		b.Holidays = c.HolidaysInSpan(ws, ws.AddDate(0, 0, 4))
		b.HasHoliday = len(b.Holidays) > 0
		out = append(out, b)
	}
	return out
}
