package calendar

import (
	"fmt"
	"sort"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

// CalProvider serves national holidays from github.com/rickar/cal.
type CalProvider struct {
	sets map[string][]*cal.Holiday
}

// NewCalProvider returns a provider preloaded with the national holiday sets
// shipped by rickar/cal. "UK" is accepted as an alias of "GB".
func NewCalProvider() *CalProvider {
	p := &CalProvider{sets: map[string][]*cal.Holiday{}}
	p.Register("US", us.Holidays)
	p.Register("GB", gb.Holidays)
	p.Register("UK", gb.Holidays)
	p.Register("DE", de.Holidays)
	p.Register("FR", fr.Holidays)
	p.Register("CA", ca.Holidays)
	p.Register("NL", nl.Holidays)
	p.Register("IT", it.Holidays)
	p.Register("ES", es.Holidays)
	return p
}

// Register adds or replaces the holiday set for a jurisdiction code.
func (p *CalProvider) Register(code string, holidays []*cal.Holiday) {
	p.sets[NormalizeJurisdiction(code)] = holidays
}

// Jurisdictions lists the registered codes in sorted order.
func (p *CalProvider) Jurisdictions() []string {
	out := make([]string, 0, len(p.sets))
	for k := range p.sets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *CalProvider) Supports(jurisdiction string) bool {
	_, ok := p.sets[NormalizeJurisdiction(jurisdiction)]
	return ok
}

func (p *CalProvider) Holidays(jurisdiction string, year int) ([]Holiday, error) {
	set, ok := p.sets[NormalizeJurisdiction(jurisdiction)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, jurisdiction)
	}
	out := make([]Holiday, 0, len(set)*2)
	for _, h := range set {
		if h == nil {
			continue
		}
		actual, observed := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		actual = Truncate(actual)
		out = append(out, Holiday{Date: actual, Name: h.Name})
		if observed.IsZero() {
			continue
		}
		if observed = Truncate(observed); !observed.Equal(actual) {
			out = append(out, Holiday{Date: observed, Name: h.Name + " (Observed)", Observed: true})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
