package calendar

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrUnknownJurisdiction is returned when no holiday provider recognizes a code.
var ErrUnknownJurisdiction = errors.New("unknown jurisdiction")

// Holiday is a single public holiday occurrence.
type Holiday struct {
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Observed bool      `json:"observed,omitempty"`
}

// HolidayProvider is the external source of holiday data.
//
// Holidays must be a pure function of (jurisdiction, year) so callers may memoize it.
// The returned dates may spill into neighbouring years (observed New Year's Day).
type HolidayProvider interface {
	Supports(jurisdiction string) bool
	Holidays(jurisdiction string, year int) ([]Holiday, error)
}

// NormalizeJurisdiction upper-cases and trims a jurisdiction code.
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StaticProvider serves fixed holiday lists. Used for company-specific
// closures from config and as a deterministic provider in tests.
type StaticProvider map[string][]Holiday

func (p StaticProvider) Supports(jurisdiction string) bool {
	_, ok := p[NormalizeJurisdiction(jurisdiction)]
	return ok
}

func (p StaticProvider) Holidays(jurisdiction string, year int) ([]Holiday, error) {
	list, ok := p[NormalizeJurisdiction(jurisdiction)]
	if !ok {
		return nil, ErrUnknownJurisdiction
	}
	out := make([]Holiday, 0, len(list))
	for _, h := range list {
		if h.Date.Year() == year {
			h.Date = Truncate(h.Date)
			out = append(out, h)
		}
	}
	return out, nil
}

// Chain combines providers. A jurisdiction is supported if any provider supports
// it; holidays are the union from every provider that supports it.
type Chain []HolidayProvider

func (c Chain) Supports(jurisdiction string) bool {
	for _, p := range c {
		if p != nil && p.Supports(jurisdiction) {
			return true
		}
	}
	return false
}

func (c Chain) Holidays(jurisdiction string, year int) ([]Holiday, error) {
	var (
		out   []Holiday
		found bool
	)
	for _, p := range c {
		if p == nil || !p.Supports(jurisdiction) {
			continue
		}
		found = true
		hs, err := p.Holidays(jurisdiction, year)
		if err != nil {
			return nil, err
		}
		out = append(out, hs...)
	}
	if !found {
		return nil, ErrUnknownJurisdiction
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
