// Package templates provides starter task sets for common deal shapes and the
// vendor due diligence expansion.
package templates

import (
	"sort"
	"strings"
	"time"

	"dealtimeline/internal/schedule"
)

const (
	SellSide  = "Standard Sell-Side M&A"
	FastTrack = "Fast-Track / Sprint M&A"
	BuySide   = "Due Diligence Heavy / Buy-Side"
)

type task = schedule.Task

var (
	standard   = schedule.CategoryStandard
	milestone  = schedule.CategoryMilestone
	bottleneck = schedule.CategoryBottleneck
	decision   = schedule.CategoryDecision
)

var catalog = map[string][]task{
	SellSide: {
		{ID: "T1.1", Name: "Kick-off & Information Gathering", Phase: "Phase 1: Preparation", DurationWeeks: 2, Category: standard},
		{ID: "T1.2", Name: "Preparation of Teaser & Information Memorandum (IM)", Phase: "Phase 1: Preparation", DurationWeeks: 4, Predecessors: []string{"T1.1"}, Category: standard},
		{ID: "T1.3", Name: "Structuring of Virtual Data Room (VDR)", Phase: "Phase 1: Preparation", DurationWeeks: 3, Predecessors: []string{"T1.1"}, Category: standard},

		{ID: "T2.1", Name: "Contact with Potential Investors & NDAs", Phase: "Phase 2: Marketing", DurationWeeks: 3, Predecessors: []string{"T1.2"}, Category: standard},
		{ID: "T2.2", Name: "Distribution of IM & Process Letter I", Phase: "Phase 2: Marketing", DurationWeeks: 1, Predecessors: []string{"T2.1"}, Category: milestone},
		{ID: "T2.3", Name: "Reception & Evaluation of Non-Binding Offers (NBOs)", Phase: "Phase 2: Marketing", DurationWeeks: 2, Predecessors: []string{"T2.2"}, Category: decision},

		{ID: "T3.1", Name: "VDR Access & Confirmatory Due Diligence", Phase: "Phase 3: Due Diligence & Exclusivity", DurationWeeks: 6, Predecessors: []string{"T2.3"}, Category: standard},
		{ID: "T3.2", Name: "Management Presentations & Site Visits", Phase: "Phase 3: Due Diligence & Exclusivity", DurationWeeks: 2, Predecessors: []string{"T2.3"}, Category: bottleneck},
		{ID: "T3.3", Name: "Sharing of SPA Drafts & Legal Terms", Phase: "Phase 3: Due Diligence & Exclusivity", DurationWeeks: 1, Predecessors: []string{"T3.1"}, Category: standard},
		{ID: "T3.4", Name: "Reception of Binding Offers (BOs) & SPA Mark-up", Phase: "Phase 3: Due Diligence & Exclusivity", DurationWeeks: 2, Predecessors: []string{"T3.1"}, Category: decision},

		{ID: "T4.1", Name: "Final Negotiation with Selected Investor", Phase: "Phase 4: Conclusion", DurationWeeks: 3, Predecessors: []string{"T3.4"}, Category: standard},
		{ID: "T4.2", Name: "Finalization of Legal Docs & SPA Signature / Closing", Phase: "Phase 4: Conclusion", DurationWeeks: 1, Predecessors: []string{"T4.1"}, Category: milestone},
	},
	FastTrack: {
		{ID: "F1.1", Name: "Teaser, VDR Setup & Initial Contacts", Phase: "Phase 1: Accelerated Prep & Marketing", DurationWeeks: 3, Category: standard},
		{ID: "F1.2", Name: "IM Distribution & Fast-track NDAs", Phase: "Phase 1: Accelerated Prep & Marketing", DurationWeeks: 2, Predecessors: []string{"F1.1"}, Category: standard},
		{ID: "F1.3", Name: "Reception of NBOs", Phase: "Phase 1: Accelerated Prep & Marketing", DurationWeeks: 1, Predecessors: []string{"F1.2"}, Category: decision},

		{ID: "F2.1", Name: "Intensive DD & Q&A", Phase: "Phase 2: Deep Dive & Closing", DurationWeeks: 4, Predecessors: []string{"F1.3"}, Category: standard},
		{ID: "F2.2", Name: "Management Presentations", Phase: "Phase 2: Deep Dive & Closing", DurationWeeks: 1, Predecessors: []string{"F1.3"}, Category: bottleneck},
		{ID: "F2.3", Name: "Binding Offers & SPA Negotiation", Phase: "Phase 2: Deep Dive & Closing", DurationWeeks: 2, Predecessors: []string{"F2.1"}, Category: decision},
		{ID: "F2.4", Name: "Closing", Phase: "Phase 2: Deep Dive & Closing", DurationWeeks: 1, Predecessors: []string{"F2.3"}, Category: milestone},
	},
	BuySide: {
		{ID: "D1.1", Name: "Kick-off Meetings for DDs (Financial, Tax, Legal)", Phase: "Phase 1: DD Kick-off", DurationWeeks: 1, Category: standard},
		{ID: "D1.2", Name: "Data Room Opening & Info Processing", Phase: "Phase 1: DD Kick-off", DurationWeeks: 2, Predecessors: []string{"D1.1"}, Category: standard},

		{ID: "D2.1", Name: "Expert Sessions & Q&A with Key People", Phase: "Phase 2: Execution & Q&A", DurationWeeks: 3, Predecessors: []string{"D1.2"}, Category: standard},
		{ID: "D2.2", Name: "Confirmatory DD Execution", Phase: "Phase 2: Execution & Q&A", DurationWeeks: 5, Predecessors: []string{"D1.2"}, Category: standard},

		{ID: "D3.1", Name: "SPA Draft Sharing", Phase: "Phase 3: Legal & Conclusion", DurationWeeks: 1, Predecessors: []string{"D2.2"}, Category: standard},
		{ID: "D3.2", Name: "Evaluation of BOs & SPA Mark-up", Phase: "Phase 3: Legal & Conclusion", DurationWeeks: 2, Predecessors: []string{"D3.1"}, Category: decision},
		{ID: "D3.3", Name: "Final Negotiation & Closing", Phase: "Phase 3: Legal & Conclusion", DurationWeeks: 2, Predecessors: []string{"D3.2"}, Category: milestone},
	},
}

// Names lists the available templates.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ByName builds a project from the template whose keyword appears in name
// ("Standard", "Fast-Track", "Buy-Side"). Anything else falls back to the
// standard sell-side template. Dates are not computed.
func ByName(name string, start time.Time, jurisdiction string) *schedule.Project {
	key := SellSide
	switch {
	case strings.Contains(name, "Standard"):
		key = SellSide
	case strings.Contains(name, "Fast-Track"):
		key = FastTrack
	case strings.Contains(name, "Buy-Side"):
		key = BuySide
	}
	p := &schedule.Project{Name: key, StartDate: start, Jurisdiction: jurisdiction}
	p.ReplaceTasks(catalog[key])
	return p
}
