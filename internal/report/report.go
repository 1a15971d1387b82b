// Package report turns a resolved project into a week-bucketed occupancy grid
// and renders it as text or JSON.
package report

import (
	"fmt"
	"time"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/risk"
	"dealtimeline/internal/schedule"
)

const dateLayout = "2006-01-02"

// Calendar is the read-only calendar view the grid needs.
type Calendar interface {
	Jurisdiction() string
	WeekBuckets(from, to time.Time) []calendar.WeekBucket
	HolidaysInSpan(from, to time.Time) []calendar.Holiday
}

// Cell is one (task, week) slot of the grid.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellBar
	CellMilestone
	CellDecision
	CellBottleneck
	CellExternal
)

func (c Cell) String() string {
	switch c {
	case CellBar:
		return "█"
	case CellMilestone:
		return "▲"
	case CellDecision:
		return "★"
	case CellBottleneck:
		return "⚠"
	case CellExternal:
		return "🔗"
	default:
		return ""
	}
}

func (c Cell) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Cell) UnmarshalText(b []byte) error {
	s := string(b)
	for v := CellEmpty; v <= CellExternal; v++ {
		if v.String() == s {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("report: unknown cell %q", s)
}

// Week is a grid column.
type Week struct {
	Start      string             `json:"start"`
	Label      string             `json:"label"`
	HasHoliday bool               `json:"has_holiday"`
	Holidays   []calendar.Holiday `json:"holidays,omitempty"`
}

// Row is one task. Cells is only set for scheduled tasks.
type Row struct {
	ID            string            `json:"id"`
	Phase         string            `json:"phase"`
	Name          string            `json:"name"`
	DurationWeeks float64           `json:"duration_weeks"`
	Category      schedule.Category `json:"category"`
	Predecessors  []string          `json:"predecessors,omitempty"`
	Start         string            `json:"start,omitempty"`
	End           string            `json:"end,omitempty"`
	Scheduled     bool              `json:"scheduled"`
	Cells         []Cell            `json:"cells,omitempty"`
}

// Report is the rendered view of one recompute.
type Report struct {
	Title        string             `json:"title"`
	Project      string             `json:"project"`
	Jurisdiction string             `json:"jurisdiction"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date,omitempty"`
	Lang         Lang               `json:"lang"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Columns      []string           `json:"columns"`
	Weeks        []Week             `json:"weeks"`
	Rows         []Row              `json:"rows"`
	Holidays     []calendar.Holiday `json:"holidays"`
	Unresolved   []string           `json:"unresolved,omitempty"`
	Risks        []risk.Warning     `json:"risks,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// Options tune Build.
type Options struct {
	Lang     Lang
	Absences []risk.Absence
	Now      time.Time
}

// Build lays out p, which must already be recomputed against cal.
//
// Columns run from the Monday of the project start's week up to one week past
// the latest end (four weeks past the start when nothing is scheduled). A task
// occupies week ws when Start <= ws < End. The week holding End-1 day carries
// the category marker; earlier weeks show a bar for Standard and Bottleneck tasks.
func Build(p *schedule.Project, cal Calendar, opt Options) Report {
	ls := labelsFor(opt.Lang)
	lang := opt.Lang
	if _, ok := labelSets[lang]; !ok {
		lang = EN
	}
	now := opt.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	r := Report{
		Title:        fmt.Sprintf(ls.title, p.Name, cal.Jurisdiction()),
		Project:      p.Name,
		Jurisdiction: cal.Jurisdiction(),
		StartDate:    formatDate(p.StartDate),
		Lang:         lang,
		GeneratedAt:  now,
		Columns:      append([]string(nil), ls.columns...),
	}

	limit := p.StartDate.AddDate(0, 0, 28)
	if _, end, ok := p.Bounds(); ok {
		r.EndDate = formatDate(end)
		limit = end.AddDate(0, 0, 7)
	}
	buckets := cal.WeekBuckets(p.StartDate, limit.AddDate(0, 0, -1))
	starts := make([]time.Time, len(buckets))
	for i, b := range buckets {
		starts[i] = b.Start
		r.Weeks = append(r.Weeks, Week{
			Start:      formatDate(b.Start),
			Label:      ls.weekLabel(b.Start),
			HasHoliday: b.HasHoliday,
			Holidays:   b.Holidays,
		})
	}
	if len(buckets) > 0 {
		last := buckets[len(buckets)-1].End
		r.Holidays = cal.HolidaysInSpan(buckets[0].Start, last)
	}
	if r.Holidays == nil {
		r.Holidays = []calendar.Holiday{}
	}

	for _, t := range p.Tasks {
		row := Row{
			ID:            t.ID,
			Phase:         t.Phase,
			Name:          t.Name,
			DurationWeeks: t.DurationWeeks,
			Category:      t.Category,
			Predecessors:  t.Predecessors,
			Scheduled:     t.Scheduled(),
		}
		if row.Category == "" {
			row.Category = schedule.CategoryStandard
		}
		if row.Scheduled {
			row.Start = formatDate(t.Start)
			row.End = formatDate(t.End)
			row.Cells = cells(t, starts)
		} else {
			r.Unresolved = append(r.Unresolved, t.ID)
			r.Warnings = append(r.Warnings, fmt.Sprintf(ls.unscheduled, t.Name, t.ID))
		}
		r.Rows = append(r.Rows, row)
	}

	r.Risks = risk.Check(p.Tasks, opt.Absences)
	for _, w := range r.Risks {
		r.Warnings = append(r.Warnings, fmt.Sprintf(ls.riskWarning,
			w.Category, w.TaskName, w.Person, formatDate(w.From), formatDate(w.To)))
	}
	return r
}

// Row returns the row for a task id.
func (r Report) Row(id string) (Row, bool) {
	for _, row := range r.Rows {
		if row.ID == id {
			return row, true
		}
	}
	return Row{}, false
}

func cells(t schedule.Task, weeks []time.Time) []Cell {
	out := make([]Cell, len(weeks))
	if !t.End.After(t.Start) {
		// Zero-length tasks occupy no week under Start <= ws < End; pin the
		// marker to the week they fall in.
		for i, ws := range weeks {
			if !t.Start.Before(ws) && t.Start.Before(ws.AddDate(0, 0, 7)) {
				out[i] = cellFor(t.Category, true)
			}
		}
		return out
	}
	last := t.End.AddDate(0, 0, -1)
	for i, ws := range weeks {
		if t.Start.After(ws) || !ws.Before(t.End) {
			continue
		}
		concluding := !last.Before(ws) && last.Before(ws.AddDate(0, 0, 7))
		out[i] = cellFor(t.Category, concluding)
	}
	return out
}

func cellFor(c schedule.Category, concluding bool) Cell {
	if concluding {
		switch c {
		case schedule.CategoryMilestone:
			return CellMilestone
		case schedule.CategoryDecision:
			return CellDecision
		case schedule.CategoryBottleneck:
			return CellBottleneck
		case schedule.CategoryExternal:
			return CellExternal
		default:
			return CellBar
		}
	}
	switch c {
	case schedule.CategoryMilestone, schedule.CategoryDecision, schedule.CategoryExternal:
		return CellEmpty
	default:
		return CellBar
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
