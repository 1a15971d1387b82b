package config

import (
	"errors"
	"path/filepath"
	"testing"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/risk"
	"dealtimeline/internal/schedule"
)

const projectYAML = `
name: Project Falcon
start_date: 2025-10-20
tasks:
  - id: A
    name: Kick-off
    phase: Prep
    duration_weeks: 1
  - id: B
    name: Offers
    duration_weeks: 2
    predecessors: [A]
    category: key decision
absences:
  - person: CFO
    start: 2025-11-03
    end: 2025-11-07
`

const projectHCL = `
name         = "Project Falcon"
start_date   = "2025-10-20"
jurisdiction = "GB"

task "A" {
  name           = "Kick-off"
  phase          = "Prep"
  duration_weeks = 1
}

task "B" {
  name           = "Offers"
  duration_weeks = 2
  predecessors   = ["A"]
  category       = "Key Decision"
}

absence "CFO" {
  start = "2025-11-03"
  end   = "2025-11-07"
}
`

func checkFalcon(t *testing.T, lp *LoadedProject, wantJur string) {
	t.Helper()
	p := lp.Project
	if p.Name != "Project Falcon" || p.Jurisdiction != wantJur {
		t.Fatalf("project = %q/%q", p.Name, p.Jurisdiction)
	}
	if !p.StartDate.Equal(calendar.Day(2025, 10, 20)) {
		t.Fatalf("start = %v", p.StartDate)
	}
	if len(p.Tasks) != 2 {
		t.Fatalf("tasks = %+v", p.Tasks)
	}
	b, _ := p.Task("B")
	if b.Category != schedule.CategoryDecision || !b.HasPredecessor("A") || b.DurationWeeks != 2 {
		t.Fatalf("B = %+v", b)
	}
	if a, _ := p.Task("A"); a.Category != schedule.CategoryStandard {
		t.Fatalf("A category = %q, want Standard default", a.Category)
	}
	if len(lp.Absences) != 1 || lp.Absences[0].Person != "CFO" || !lp.Absences[0].End.Equal(calendar.Day(2025, 11, 7)) {
		t.Fatalf("absences = %+v", lp.Absences)
	}
}

func TestLoadProjectYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "deal.yaml", projectYAML)
	lp, err := LoadProject(path, "US")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	checkFalcon(t, lp, "US")
	if lp.Source != path {
		t.Fatalf("Source = %q", lp.Source)
	}
}

func TestLoadProjectHCL(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "deal.hcl", projectHCL)
	lp, err := LoadProject(path, "US")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	checkFalcon(t, lp, "GB")
}

func TestLoadProjectFromTemplateWithVDD(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "deal.json",
		`{"name":"Sale","start_date":"2025-10-20","jurisdiction":"US","template":"Standard","vdd":true}`)
	lp, err := LoadProject(path, "")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if lp.Project.Name != "Sale" || len(lp.Project.Tasks) != 16 {
		t.Fatalf("project %q has %d tasks", lp.Project.Name, len(lp.Project.Tasks))
	}
	if _, ok := lp.Project.Task("VDD.4"); !ok {
		t.Fatal("vdd tasks missing")
	}
}

func TestLoadProjectErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name, file, body string
		want             error
	}{
		{"unknown extension", "deal.toml", `name = "x"`, ErrProjectFormat},
		{"bad category", "a.json", `{"name":"x","start_date":"2025-10-20","tasks":[{"id":"A","name":"a","category":"Urgent"}]}`, schedule.ErrInvalidTask},
		{"inverted absence", "b.json", `{"name":"x","start_date":"2025-10-20","absences":[{"person":"CEO","start":"2025-11-07","end":"2025-11-03"}]}`, risk.ErrInvalidAbsence},
	}
	for _, tt := range tests {
		path := writeFile(t, dir, tt.file, tt.body)
		if _, err := LoadProject(path, "US"); !errors.Is(err, tt.want) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	path := writeFile(t, dir, "c.json", `{"name":"x","start_date":"someday"}`)
	if _, err := LoadProject(path, "US"); err == nil {
		t.Fatal("bad start_date should fail")
	}
	path = writeFile(t, dir, "d.json", `{"name":"x","start_date":"2025-10-20","owner":"me"}`)
	if _, err := LoadProject(path, "US"); err == nil {
		t.Fatal("unknown field should fail")
	}
}

func TestSaveProjectFileRoundTrip(t *testing.T) {
	t.Parallel()
	src := writeFile(t, t.TempDir(), "deal.yaml", projectYAML)
	lp, err := LoadProject(src, "US")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	pf := NewProjectFile(lp.Project, lp.Absences)

	for _, name := range []string{"out.hcl", "out.yaml", "out.json"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		if err := SaveProjectFile(path, pf); err != nil {
			t.Fatalf("SaveProjectFile(%s): %v", name, err)
		}
		got, err := LoadProject(path, "ZZ")
		if err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		checkFalcon(t, got, "US")
	}
}
