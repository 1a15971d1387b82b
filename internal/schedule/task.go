package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Category tags a task for presentation and risk checks. It has no effect on
// date resolution.
type Category string

const (
	CategoryStandard   Category = "Standard"
	CategoryMilestone  Category = "Milestone"
	CategoryBottleneck Category = "Bottleneck"
	CategoryDecision   Category = "Key Decision"
	CategoryExternal   Category = "External Dependency"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryStandard,
	CategoryMilestone,
	CategoryBottleneck,
	CategoryDecision,
	CategoryExternal,
}

// ParseCategory matches s case-insensitively against the known categories.
// An empty string is Standard.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryStandard, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidTask, s)
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Task is one node of the dependency graph. Predecessors are task ids; ids
// missing from the project are ignored during resolution.
//
// Start and End are derived. Both are zero until a resolution pass assigns them.
type Task struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Phase         string   `json:"phase,omitempty" yaml:"phase,omitempty"`
	DurationWeeks float64  `json:"duration_weeks" yaml:"duration_weeks"`
	Predecessors  []string `json:"predecessors,omitempty" yaml:"predecessors,omitempty"`
	Category      Category `json:"category,omitempty" yaml:"category,omitempty"`

	Start time.Time `json:"-" yaml:"-"`
	End   time.Time `json:"-" yaml:"-"`
}

// Scheduled reports whether the last pass assigned dates to t.
func (t Task) Scheduled() bool { return !t.Start.IsZero() && !t.End.IsZero() }

// IsMilestone is true only for an exact zero duration. A duration that
// truncates to zero working days is not a milestone.
func (t Task) IsMilestone() bool { return t.DurationWeeks == 0 }

// WorkingDays is the duration in working days, truncated (5 per week).
func (t Task) WorkingDays() int {
	if t.DurationWeeks <= 0 {
		return 0
	}
	return int(t.DurationWeeks * 5)
}

// HasPredecessor reports whether id is listed as a predecessor of t.
func (t Task) HasPredecessor(id string) bool {
	for _, p := range t.Predecessors {
		if p == id {
			return true
		}
	}
	return false
}

func (t Task) clone() Task {
	out := t
	if t.Predecessors != nil {
		out.Predecessors = append([]string(nil), t.Predecessors...)
	}
	return out
}

func (t *Task) clearDates() {
	t.Start = time.Time{}
	t.End = time.Time{}
}
