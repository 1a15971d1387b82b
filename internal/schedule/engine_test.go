package schedule

import (
	"testing"
	"time"

	"dealtimeline/internal/calendar"
)

func holidayFree(t *testing.T) *calendar.Calendar {
	t.Helper()
	c, err := calendar.New(calendar.StaticProvider{"ZZ": nil}, "ZZ")
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	return c
}

func julyFourth(t *testing.T) *calendar.Calendar {
	t.Helper()
	c, err := calendar.New(calendar.StaticProvider{
		"US": {{Date: calendar.Day(2025, 7, 4), Name: "Independence Day"}},
	}, "US")
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	return c
}

func ymd(d time.Time) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("2006-01-02")
}

func mustTask(t *testing.T, p *Project, id string) Task {
	t.Helper()
	task, ok := p.Task(id)
	if !ok {
		t.Fatalf("task %q not found", id)
	}
	return task
}

func TestRecomputeTuesdayStartSkipsFridayHoliday(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 7, 1), Jurisdiction: "US"}
	p.AddTask(Task{ID: "A", Name: "Kickoff", DurationWeeks: 1})

	res := p.Recompute(julyFourth(t))
	if !res.Complete() {
		t.Fatalf("unresolved: %v", res.Unresolved)
	}
	a := mustTask(t, p, "A")
	if !a.Start.Equal(calendar.Day(2025, 7, 1)) {
		t.Fatalf("start = %s, want 2025-07-01", ymd(a.Start))
	}
	if !a.End.Equal(calendar.Day(2025, 7, 9)) {
		t.Fatalf("end = %s, want 2025-07-09", ymd(a.End))
	}
}

func TestRecomputeChainOnHolidayFreeCalendar(t *testing.T) {
	t.Parallel()
	monday := calendar.Day(2025, 10, 20)
	p := &Project{StartDate: monday}
	p.AddTask(Task{ID: "A", DurationWeeks: 1})
	p.AddTask(Task{ID: "B", DurationWeeks: 2, Predecessors: []string{"A"}})

	p.Recompute(holidayFree(t))
	a, b := mustTask(t, p, "A"), mustTask(t, p, "B")
	if !a.Start.Equal(monday) || !a.End.Equal(monday.AddDate(0, 0, 7)) {
		t.Fatalf("A = %s..%s", ymd(a.Start), ymd(a.End))
	}
	if !b.Start.Equal(a.End) {
		t.Fatalf("B.Start = %s, want A.End %s", ymd(b.Start), ymd(a.End))
	}
	if !b.End.Equal(b.Start.AddDate(0, 0, 14)) {
		t.Fatalf("B.End = %s, want %s", ymd(b.End), ymd(b.Start.AddDate(0, 0, 14)))
	}
}

func TestRecomputeDoesNotSnapProjectStart(t *testing.T) {
	t.Parallel()
	saturday := calendar.Day(2025, 7, 5)
	p := &Project{StartDate: saturday}
	p.AddTask(Task{ID: "M", DurationWeeks: 0, Category: CategoryMilestone})
	p.AddTask(Task{ID: "W", DurationWeeks: 1})

	p.Recompute(holidayFree(t))
	for _, id := range []string{"M", "W"} {
		if got := mustTask(t, p, id).Start; !got.Equal(saturday) {
			t.Fatalf("%s.Start = %s, want the unsnapped project start %s", id, ymd(got), ymd(saturday))
		}
	}
}

func TestRecomputeSnapsSuccessorStart(t *testing.T) {
	t.Parallel()
	cal := julyFourth(t)
	// A ends on the holiday itself, so B must start the following Monday.
	p := &Project{StartDate: calendar.Day(2025, 7, 4)}
	p.AddTask(Task{ID: "A", DurationWeeks: 0})
	p.AddTask(Task{ID: "B", DurationWeeks: 1, Predecessors: []string{"A"}})

	p.Recompute(cal)
	b := mustTask(t, p, "B")
	if !b.Start.Equal(calendar.Day(2025, 7, 7)) {
		t.Fatalf("B.Start = %s, want 2025-07-07", ymd(b.Start))
	}
	if want := cal.NextOrSameWorkingDay(mustTask(t, p, "A").End); !b.Start.Equal(want) {
		t.Fatalf("B.Start = %s, want snap of A.End = %s", ymd(b.Start), ymd(want))
	}
}

func TestRecomputeLatestPredecessorWins(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "short", DurationWeeks: 1})
	p.AddTask(Task{ID: "long", DurationWeeks: 3})
	p.AddTask(Task{ID: "join", DurationWeeks: 1, Predecessors: []string{"short", "long"}})

	p.Recompute(holidayFree(t))
	if got, want := mustTask(t, p, "join").Start, mustTask(t, p, "long").End; !got.Equal(want) {
		t.Fatalf("join.Start = %s, want %s", ymd(got), ymd(want))
	}
}

func TestRecomputeEndNotBeforeStart(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 7, 1)}
	p.AddTask(Task{ID: "zero", DurationWeeks: 0})
	p.AddTask(Task{ID: "tiny", DurationWeeks: 0.1, Predecessors: []string{"zero"}})
	p.AddTask(Task{ID: "day", DurationWeeks: 0.2, Predecessors: []string{"tiny"}})
	p.AddTask(Task{ID: "half", DurationWeeks: 1.5, Predecessors: []string{"day"}})

	p.Recompute(julyFourth(t))
	for _, task := range p.Tasks {
		if task.End.Before(task.Start) {
			t.Fatalf("%s: end %s before start %s", task.ID, ymd(task.End), ymd(task.Start))
		}
		if task.DurationWeeks >= 0.2 && task.End.Equal(task.Start) {
			t.Fatalf("%s: non-zero working days must advance the end", task.ID)
		}
	}
	zero := mustTask(t, p, "zero")
	if !zero.End.Equal(zero.Start) {
		t.Fatal("milestone end must equal start")
	}
	// 0.1 weeks truncates to zero working days; it is not a milestone but does not move either.
	tiny := mustTask(t, p, "tiny")
	if tiny.IsMilestone() || !tiny.End.Equal(tiny.Start) {
		t.Fatalf("tiny: milestone=%v start=%s end=%s", tiny.IsMilestone(), ymd(tiny.Start), ymd(tiny.End))
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()
	cal := julyFourth(t)
	p := &Project{StartDate: calendar.Day(2025, 6, 23)}
	p.AddTask(Task{ID: "1", DurationWeeks: 1})
	p.AddTask(Task{ID: "2", DurationWeeks: 2, Predecessors: []string{"1"}})
	p.AddTask(Task{ID: "3", DurationWeeks: 0.5, Predecessors: []string{"1", "2"}})

	p.Recompute(cal)
	first := p.Clone()
	p.Recompute(cal)
	for i := range p.Tasks {
		if !p.Tasks[i].Start.Equal(first.Tasks[i].Start) || !p.Tasks[i].End.Equal(first.Tasks[i].End) {
			t.Fatalf("task %s changed between passes", p.Tasks[i].ID)
		}
	}
}

func TestRecomputeContainsCycle(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "A", DurationWeeks: 1, Predecessors: []string{"B"}})
	p.AddTask(Task{ID: "B", DurationWeeks: 1, Predecessors: []string{"A"}})
	p.AddTask(Task{ID: "C", DurationWeeks: 1})
	p.AddTask(Task{ID: "D", DurationWeeks: 1, Predecessors: []string{"A"}})

	res := p.Recompute(holidayFree(t))
	if !mustTask(t, p, "C").Scheduled() {
		t.Fatal("independent task C should be scheduled")
	}
	for _, id := range []string{"A", "B", "D"} {
		task := mustTask(t, p, id)
		if !task.Start.IsZero() || !task.End.IsZero() {
			t.Fatalf("%s should have absent dates, got %s..%s", id, ymd(task.Start), ymd(task.End))
		}
	}
	if len(res.Unresolved) != 3 || res.Unresolved[0] != "A" || res.Unresolved[2] != "D" {
		t.Fatalf("Unresolved = %v, want [A B D]", res.Unresolved)
	}
	if res.Capped {
		t.Fatal("a stalled pass is not a capped run")
	}
}

func TestRecomputeSelfDependencyUnresolved(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "loop", DurationWeeks: 1, Predecessors: []string{"loop"}})
	res := p.Recompute(holidayFree(t))
	if res.Complete() || mustTask(t, p, "loop").Scheduled() {
		t.Fatal("self-dependent task must stay unresolved")
	}
}

func TestRecomputeDanglingPredecessorUsesProjectStart(t *testing.T) {
	t.Parallel()
	start := calendar.Day(2025, 10, 21)
	p := &Project{StartDate: start}
	p.AddTask(Task{ID: "X", DurationWeeks: 1, Predecessors: []string{"deleted-long-ago"}})
	res := p.Recompute(holidayFree(t))
	if !res.Complete() {
		t.Fatalf("unresolved: %v", res.Unresolved)
	}
	if got := mustTask(t, p, "X").Start; !got.Equal(start) {
		t.Fatalf("X.Start = %s, want project start %s", ymd(got), ymd(start))
	}
}

func TestRecomputeResolvesOutOfOrderTasks(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "C", DurationWeeks: 1, Predecessors: []string{"B"}})
	p.AddTask(Task{ID: "B", DurationWeeks: 1, Predecessors: []string{"A"}})
	p.AddTask(Task{ID: "A", DurationWeeks: 1})

	res := p.Recompute(holidayFree(t))
	if !res.Complete() {
		t.Fatalf("unresolved: %v", res.Unresolved)
	}
	if res.Passes != 3 {
		t.Fatalf("Passes = %d, want 3 (one wave per level)", res.Passes)
	}
	if got := mustTask(t, p, "C").End; !got.Equal(calendar.Day(2025, 11, 10)) {
		t.Fatalf("C.End = %s, want 2025-11-10", ymd(got))
	}
}

func TestRecomputeClearsStaleDates(t *testing.T) {
	t.Parallel()
	cal := holidayFree(t)
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	p.AddTask(Task{ID: "A", DurationWeeks: 1})
	p.AddTask(Task{ID: "B", DurationWeeks: 1, Predecessors: []string{"A"}})
	p.Recompute(cal)

	// Editing A to depend on B creates a cycle; the old dates must not survive.
	p.Tasks[0].Predecessors = []string{"B"}
	p.Recompute(cal)
	for _, task := range p.Tasks {
		if task.Scheduled() {
			t.Fatalf("%s kept stale dates %s..%s", task.ID, ymd(task.Start), ymd(task.End))
		}
	}
}

func TestRecomputeEmptyProject(t *testing.T) {
	t.Parallel()
	p := &Project{StartDate: calendar.Day(2025, 10, 20)}
	res := p.Recompute(holidayFree(t))
	if !res.Complete() || res.Passes != 0 {
		t.Fatalf("empty project result = %+v", res)
	}
}
