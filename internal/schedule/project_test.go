package schedule

import (
	"errors"
	"math"
	"testing"

	"dealtimeline/internal/calendar"
)

func TestDeleteTaskStripsPredecessor(t *testing.T) {
	t.Parallel()
	cal := holidayFree(t)
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "X", DurationWeeks: 2})
	p.AddTask(Task{ID: "W", DurationWeeks: 1})
	p.AddTask(Task{ID: "Y", DurationWeeks: 1, Predecessors: []string{"X", "W"}})
	p.Recompute(cal)

	if err := p.DeleteTask("X"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	y := mustTask(t, p, "Y")
	if y.HasPredecessor("X") {
		t.Fatalf("Y still references X: %v", y.Predecessors)
	}
	if len(y.Predecessors) != 1 || y.Predecessors[0] != "W" {
		t.Fatalf("Y.Predecessors = %v, want [W]", y.Predecessors)
	}

	p.Recompute(cal)
	if got, want := mustTask(t, p, "Y").Start, mustTask(t, p, "W").End; !got.Equal(want) {
		t.Fatalf("Y.Start = %s, want W.End %s", ymd(got), ymd(want))
	}
}

func TestDeleteTaskUnknown(t *testing.T) {
	t.Parallel()
	p := &Project{}
	p.AddTask(Task{ID: "A"})
	if err := p.DeleteTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
	if len(p.Tasks) != 1 {
		t.Fatal("failed delete must not change the project")
	}
}

func TestReplaceTasksCopiesInput(t *testing.T) {
	t.Parallel()
	in := []Task{{ID: "A", Predecessors: []string{"Z"}}}
	p := &Project{}
	p.ReplaceTasks(in)
	in[0].Predecessors[0] = "mutated"
	if got := mustTask(t, p, "A"); got.Predecessors[0] != "Z" || got.Category != CategoryStandard {
		t.Fatalf("ReplaceTasks kept a reference or skipped the default category: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		project Project
		want    error
	}{
		{
			name:    "ok with dangling predecessor",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "A", Predecessors: []string{"gone"}}}},
		},
		{
			name:    "duplicate id",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "A"}, {ID: "A"}}},
			want:    ErrDuplicateID,
		},
		{
			name:    "empty id",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "  "}}},
			want:    ErrInvalidTask,
		},
		{
			name:    "negative duration",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "A", DurationWeeks: -1}}},
			want:    ErrInvalidTask,
		},
		{
			name:    "NaN duration",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "A", DurationWeeks: math.NaN()}}},
			want:    ErrInvalidTask,
		},
		{
			name:    "unknown category",
			project: Project{StartDate: calendar.Day(2025, 1, 6), Tasks: []Task{{ID: "A", Category: "Urgent"}}},
			want:    ErrInvalidTask,
		},
		{
			name:    "missing start",
			project: Project{Tasks: []Task{{ID: "A"}}},
			want:    ErrNoStartDate,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.project.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err %T is not a *ValidationError", err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()
	p := Project{Tasks: []Task{{ID: "A"}, {ID: "A", DurationWeeks: -2}}}
	var ve *ValidationError
	if !errors.As(p.Validate(), &ve) {
		t.Fatal("expected a ValidationError")
	}
	if len(ve.Problems) != 3 {
		t.Fatalf("problems = %v, want start, duplicate and duration", ve.Problems)
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()
	tests := map[string]Category{
		"":                    CategoryStandard,
		"milestone":           CategoryMilestone,
		" Key Decision ":      CategoryDecision,
		"EXTERNAL DEPENDENCY": CategoryExternal,
		"Bottleneck":          CategoryBottleneck,
	}
	for in, want := range tests {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseCategory("urgent"); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("err = %v, want ErrInvalidTask", err)
	}
}

func TestBoundsAndHorizon(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	if _, _, ok := p.Bounds(); ok {
		t.Fatal("unscheduled project has no bounds")
	}
	p.AddTask(Task{ID: "A", DurationWeeks: 1})
	p.AddTask(Task{ID: "B", DurationWeeks: 2, Predecessors: []string{"A"}})
	p.Recompute(holidayFree(t))
	start, end, ok := p.Bounds()
	if !ok || !start.Equal(p.StartDate) || !end.Equal(mustTask(t, p, "B").End) {
		t.Fatalf("Bounds = %s..%s ok=%v", ymd(start), ymd(end), ok)
	}
	if p.Horizon().Before(end) {
		t.Fatalf("Horizon %s is before the last end %s", ymd(p.Horizon()), ymd(end))
	}
}
