package schedule

import "time"

// Calendar is the date arithmetic the resolver needs. *calendar.Calendar
// satisfies it.
type Calendar interface {
	IsWorkingDay(d time.Time) bool
	AdvanceWorkingDays(start time.Time, n int) time.Time
	NextOrSameWorkingDay(d time.Time) time.Time
}

// Result summarizes one resolution pass.
type Result struct {
	Resolved   int
	Unresolved []string // ids left without dates, in task order
	Passes     int
	Capped     bool // the pass limit was hit while still making progress
}

// Complete is true when every task received dates.
func (r Result) Complete() bool { return len(r.Unresolved) == 0 }

// Recompute clears and reassigns every task's Start/End.
//
// Resolution runs in waves: each pass walks the full task list and resolves
// every task whose present predecessors are already resolved. Predecessor ids
// that are not in the project count as satisfied. It stops when all tasks are
// resolved, when a pass makes no progress, or after 3×len(Tasks) passes. Tasks
// on or behind a cycle keep zero dates and are listed in Result.Unresolved.
//
// Tasks without present predecessors start on the project start date as given.
// Every other task starts on the first working day on or after the latest end
// of its predecessors.
func (p *Project) Recompute(cal Calendar) Result {
	for i := range p.Tasks {
		p.Tasks[i].clearDates()
	}

	present := make(map[string]struct{}, len(p.Tasks))
	for _, t := range p.Tasks {
		present[t.ID] = struct{}{}
	}

	done := make([]bool, len(p.Tasks))
	ends := make(map[string]time.Time, len(p.Tasks))
	limit := 3 * len(p.Tasks)

	var res Result
	for res.Resolved < len(p.Tasks) && res.Passes < limit {
		res.Passes++
		progress := false
		for i := range p.Tasks {
			if done[i] {
				continue
			}
			t := &p.Tasks[i]
			start, ok := p.startFor(t, cal, present, ends)
			if !ok {
				continue
			}
			t.Start = start
			if t.IsMilestone() {
				t.End = start
			} else {
				t.End = cal.AdvanceWorkingDays(start, t.WorkingDays())
			}
			ends[t.ID] = t.End
			done[i] = true
			res.Resolved++
			progress = true
		}
		if !progress {
			break
		}
	}

	for i, t := range p.Tasks {
		if !done[i] {
			res.Unresolved = append(res.Unresolved, t.ID)
		}
	}
	res.Capped = len(res.Unresolved) > 0 && res.Passes >= limit
	return res
}

// startFor returns the start date of t if all of its present predecessors are
// resolved.
func (p *Project) startFor(t *Task, cal Calendar, present map[string]struct{}, ends map[string]time.Time) (time.Time, bool) {
	var latest time.Time
	hasPred := false
	for _, pid := range t.Predecessors {
		if _, ok := present[pid]; !ok {
			continue
		}
		end, ok := ends[pid]
		if !ok {
			return time.Time{}, false
		}
		if !hasPred || end.After(latest) {
			latest = end
		}
		hasPred = true
	}
	if !hasPred {
		return p.StartDate, true
	}
	return cal.NextOrSameWorkingDay(latest), true
}
