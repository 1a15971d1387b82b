package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/risk"
	"dealtimeline/internal/schedule"
)

func fixture(t *testing.T) (*schedule.Project, *calendar.Calendar) {
	t.Helper()
	cal, err := calendar.New(calendar.StaticProvider{
		"XX": {{Date: calendar.Day(2025, 11, 4), Name: "Founders Day"}},
	}, "XX")
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	p := &schedule.Project{Name: "Deal", StartDate: calendar.Day(2025, 10, 20), Jurisdiction: "XX"}
	p.AddTask(schedule.Task{ID: "A", Name: "Prep", Phase: "P1", DurationWeeks: 1})
	p.AddTask(schedule.Task{ID: "B", Name: "Offers", Phase: "P2", DurationWeeks: 2, Predecessors: []string{"A"}, Category: schedule.CategoryDecision})
	p.AddTask(schedule.Task{ID: "M", Name: "Signing", Phase: "P2", Predecessors: []string{"B"}, Category: schedule.CategoryMilestone})
	p.AddTask(schedule.Task{ID: "C", Name: "Loop", Phase: "P3", DurationWeeks: 1, Predecessors: []string{"C"}})
	p.Recompute(cal)
	return p, cal
}

func TestBuildGrid(t *testing.T) {
	t.Parallel()
	p, cal := fixture(t)
	r := Build(p, cal, Options{Now: time.Unix(0, 0).UTC()})

	if r.EndDate != "2025-11-11" {
		t.Fatalf("EndDate = %q, want 2025-11-11", r.EndDate)
	}
	if len(r.Weeks) != 5 {
		t.Fatalf("weeks = %d, want 5", len(r.Weeks))
	}
	if r.Weeks[0].Start != "2025-10-20" || r.Weeks[0].Label != "w/c 20-Oct" {
		t.Fatalf("first week = %+v", r.Weeks[0])
	}
	for i, wk := range r.Weeks {
		if wk.HasHoliday != (i == 2) {
			t.Fatalf("week %d holiday flag = %v", i, wk.HasHoliday)
		}
	}

	want := map[string][]Cell{
		"A": {CellBar, CellEmpty, CellEmpty, CellEmpty, CellEmpty},
		"B": {CellEmpty, CellEmpty, CellEmpty, CellDecision, CellEmpty},
		"M": {CellEmpty, CellEmpty, CellEmpty, CellMilestone, CellEmpty},
	}
	for id, cells := range want {
		row, ok := r.Row(id)
		if !ok || !row.Scheduled {
			t.Fatalf("row %s missing or unscheduled", id)
		}
		for i := range cells {
			if row.Cells[i] != cells[i] {
				t.Fatalf("%s cells = %v, want %v", id, row.Cells, cells)
			}
		}
	}
	if row, _ := r.Row("C"); row.Scheduled || row.Cells != nil || row.Start != "" {
		t.Fatalf("unscheduled row = %+v", row)
	}
	if len(r.Unresolved) != 1 || r.Unresolved[0] != "C" {
		t.Fatalf("Unresolved = %v", r.Unresolved)
	}
	if len(r.Holidays) != 1 || r.Holidays[0].Name != "Founders Day" {
		t.Fatalf("Holidays = %+v", r.Holidays)
	}
}

func TestBuildBarsForLongStandardAndBottleneck(t *testing.T) {
	t.Parallel()
	cal, _ := calendar.New(calendar.StaticProvider{"ZZ": nil}, "ZZ")
	p := &schedule.Project{Name: "x", StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(schedule.Task{ID: "S", DurationWeeks: 3})
	p.AddTask(schedule.Task{ID: "B", DurationWeeks: 2, Category: schedule.CategoryBottleneck})
	p.Recompute(cal)
	r := Build(p, cal, Options{})

	s, _ := r.Row("S")
	if s.Cells[0] != CellBar || s.Cells[1] != CellBar || s.Cells[2] != CellBar || s.Cells[3] != CellEmpty {
		t.Fatalf("S cells = %v", s.Cells)
	}
	b, _ := r.Row("B")
	if b.Cells[0] != CellBar || b.Cells[1] != CellBottleneck || b.Cells[2] != CellEmpty {
		t.Fatalf("B cells = %v", b.Cells)
	}
}

func TestBuildEmptyProjectSpansFourWeeks(t *testing.T) {
	t.Parallel()
	cal, _ := calendar.New(calendar.StaticProvider{"ZZ": nil}, "ZZ")
	p := &schedule.Project{Name: "empty", StartDate: calendar.Day(2025, 10, 20)}
	r := Build(p, cal, Options{})
	if len(r.Weeks) != 4 || r.Weeks[0].Start != "2025-10-20" {
		t.Fatalf("weeks = %+v", r.Weeks)
	}
	if r.EndDate != "" || len(r.Rows) != 0 {
		t.Fatalf("unexpected content: %+v", r)
	}
}

func TestBuildWarnings(t *testing.T) {
	t.Parallel()
	p, cal := fixture(t)
	r := Build(p, cal, Options{
		Lang:     PT,
		Absences: []risk.Absence{{Person: "CFO", Start: calendar.Day(2025, 11, 5), End: calendar.Day(2025, 11, 7)}},
	})
	if len(r.Risks) != 1 || r.Risks[0].TaskID != "B" {
		t.Fatalf("Risks = %+v", r.Risks)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings = %v", r.Warnings)
	}
	if !strings.Contains(r.Warnings[1], "AVISO CRÍTICO") || !strings.Contains(r.Warnings[1], "CFO") {
		t.Fatalf("risk warning not localized: %q", r.Warnings[1])
	}
	if r.Columns[1] != "Fase" || r.Weeks[0].Label != "Sem de 20-out" {
		t.Fatalf("PT labels not applied: %v %q", r.Columns, r.Weeks[0].Label)
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()
	p, cal := fixture(t)
	var buf bytes.Buffer
	if err := WriteText(&buf, Build(p, cal, Options{})); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Deal Timeline (XX Holidays)",
		"w/c 03-Nov*",
		"2025-11-04  Founders Day",
		"★",
		"▲",
		"could not be scheduled",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "P3") {
		t.Fatalf("unscheduled task should not appear in the grid:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	p, cal := fixture(t)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Build(p, cal, Options{})); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got struct {
		Rows []struct {
			ID    string   `json:"id"`
			End   string   `json:"end"`
			Cells []string `json:"cells"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 4 || got.Rows[1].End != "2025-11-11" || got.Rows[1].Cells[3] != "★" {
		t.Fatalf("rows = %+v", got.Rows)
	}
}

func TestParseLang(t *testing.T) {
	t.Parallel()
	if ParseLang("pt") != PT || ParseLang("") != EN || ParseLang("de") != EN {
		t.Fatal("ParseLang mismatch")
	}
}
