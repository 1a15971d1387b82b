package calendar

import (
	"fmt"
	"sync"
	"time"
)

// Calendar answers working-day questions for a single jurisdiction.
//
// Holiday lookups are memoized per year. A Calendar is safe for concurrent use.
type Calendar struct {
	jurisdiction string
	provider     HolidayProvider

	mu    sync.Mutex
	years map[int]map[time.Time]Holiday
	err   error
}

// New returns a calendar for jurisdiction. It fails with ErrUnknownJurisdiction
// when the provider does not recognize the code.
func New(provider HolidayProvider, jurisdiction string) (*Calendar, error) {
	code := NormalizeJurisdiction(jurisdiction)
	if provider == nil {
		return nil, fmt.Errorf("calendar: holiday provider is nil")
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrUnknownJurisdiction)
	}
	if !provider.Supports(code) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, jurisdiction)
	}
	return &Calendar{
		jurisdiction: code,
		provider:     provider,
		years:        map[int]map[time.Time]Holiday{},
	}, nil
}

func (c *Calendar) Jurisdiction() string { return c.jurisdiction }

// Day builds a UTC midnight date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping its calendar date.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return Day(t.Year(), t.Month(), t.Day())
}

// IsWeekend reports whether d falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Prefetch loads holidays for every year touched by [from, to] and returns the
// first provider error. Call it before scheduling so provider failures abort
// the attempt instead of silently degrading to "no holidays".
func (c *Calendar) Prefetch(from, to time.Time) error {
	if to.Before(from) {
		from, to = to, from
	}
	for y := from.Year(); y <= to.Year(); y++ {
		if _, err := c.year(y); err != nil {
			return err
		}
	}
	return nil
}

// Err returns the first holiday lookup error seen outside Prefetch.
func (c *Calendar) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// HolidayOn returns the holiday falling on d, if any.
func (c *Calendar) HolidayOn(d time.Time) (Holiday, bool) {
	d = Truncate(d)
	set, err := c.year(d.Year())
	if err != nil {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
		return Holiday{}, false
	}
	h, ok := set[d]
	return h, ok
}

// IsHoliday reports whether d is a holiday in this jurisdiction (weekends included).
func (c *Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.HolidayOn(d)
	return ok
}

// IsWorkingDay is false on weekends and holidays.
func (c *Calendar) IsWorkingDay(d time.Time) bool {
	if IsWeekend(d) {
		return false
	}
	return !c.IsHoliday(d)
}

// AdvanceWorkingDays steps forward one calendar day at a time and returns the
// date on which the n-th working day is counted. n <= 0 returns start unchanged.
func (c *Calendar) AdvanceWorkingDays(start time.Time, n int) time.Time {
	cur := Truncate(start)
	if n <= 0 {
		return start
	}
	for n > 0 {
		cur = cur.AddDate(0, 0, 1)
		if c.IsWorkingDay(cur) {
			n--
		}
	}
	return cur
}

// NextOrSameWorkingDay returns d if it is a working day, otherwise the first
// working day after it.
func (c *Calendar) NextOrSameWorkingDay(d time.Time) time.Time {
	cur := Truncate(d)
	for !c.IsWorkingDay(cur) {
		cur = cur.AddDate(0, 0, 1)
	}
	return cur
}

// WorkingDays converts a duration in working weeks to a working-day count.
// Partial days are truncated: 1.1 weeks is 5 days, 0.1 weeks is 0 days.
func WorkingDays(weeks float64) int {
	if weeks <= 0 {
		return 0
	}
	return int(weeks * 5)
}

// year returns the holidays dated within year y, keyed by day.
func (c *Calendar) year(y int) (map[time.Time]Holiday, error) {
	c.mu.Lock()
	if set, ok := c.years[y]; ok {
		c.mu.Unlock()
		return set, nil
	}
	c.mu.Unlock()

	// Observed days can spill across a year boundary, so look at the neighbours too.
	set := map[time.Time]Holiday{}
	for _, yy := range []int{y - 1, y, y + 1} {
		hs, err := c.provider.Holidays(c.jurisdiction, yy)
		if err != nil {
			return nil, fmt.Errorf("holidays %s/%d: %w", c.jurisdiction, yy, err)
		}
		for _, h := range hs {
			d := Truncate(h.Date)
			if d.Year() != y {
				continue
			}
			if _, dup := set[d]; dup {
				continue
			}
			h.Date = d
			set[d] = h
		}
	}

	c.mu.Lock()
	c.years[y] = set
	c.mu.Unlock()
	return set, nil
}
