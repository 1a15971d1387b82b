package schedule

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrDuplicateID  = errors.New("schedule: duplicate task id")
	ErrInvalidTask  = errors.New("schedule: invalid task")
	ErrTaskNotFound = errors.New("schedule: task not found")
	ErrNoStartDate  = errors.New("schedule: project start date is not set")
)

// ValidationError collects every problem found by Project.Validate.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].Error()
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("%d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Project owns an ordered task collection. Order is insertion order; it does
// not imply execution order.
type Project struct {
	Name         string    `json:"name" yaml:"name"`
	StartDate    time.Time `json:"start_date" yaml:"start_date"`
	Jurisdiction string    `json:"jurisdiction" yaml:"jurisdiction"`
	Tasks        []Task    `json:"tasks" yaml:"tasks"`
}

// Clone returns a deep copy. Planners schedule a clone and swap it in on
// success, so a failed attempt never leaves half-computed dates behind.
func (p *Project) Clone() *Project {
	out := *p
	out.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		out.Tasks[i] = t.clone()
	}
	return &out
}

// Task returns a copy of the first task with the given id.
func (p *Project) Task(id string) (Task, bool) {
	if i := p.index(id); i >= 0 {
		return p.Tasks[i], true
	}
	return Task{}, false
}

// AddTask appends t. Uniqueness is checked by Validate, not here.
func (p *Project) AddTask(t Task) {
	if t.Category == "" {
		t.Category = CategoryStandard
	}
	p.Tasks = append(p.Tasks, t.clone())
}

// ReplaceTasks swaps the whole collection in place.
func (p *Project) ReplaceTasks(tasks []Task) {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.clone()
		if out[i].Category == "" {
			out[i].Category = CategoryStandard
		}
	}
	p.Tasks = out
}

// DeleteTask removes every task with the given id and strips id from the
// predecessors of the remaining tasks.
func (p *Project) DeleteTask(id string) error {
	kept := p.Tasks[:0]
	removed := false
	for _, t := range p.Tasks {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	for i := len(kept); i < len(p.Tasks); i++ {
		p.Tasks[i] = Task{}
	}
	p.Tasks = kept

	for i := range p.Tasks {
		preds := p.Tasks[i].Predecessors
		if len(preds) == 0 {
			continue
		}
		out := preds[:0]
		for _, pid := range preds {
			if pid != id {
				out = append(out, pid)
			}
		}
		p.Tasks[i].Predecessors = out
	}
	return nil
}

// Validate rejects input the resolver cannot handle unambiguously: empty or
// duplicate ids, negative or non-finite durations and unknown categories.
// Dangling predecessor ids are allowed.
func (p *Project) Validate() error {
	var problems []error
	if p.StartDate.IsZero() {
		problems = append(problems, ErrNoStartDate)
	}
	seen := make(map[string]int, len(p.Tasks))
	for i, t := range p.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			problems = append(problems, fmt.Errorf("%w: task #%d has an empty id", ErrInvalidTask, i+1))
			continue
		}
		if first, dup := seen[id]; dup {
			problems = append(problems, fmt.Errorf("%w: %q (tasks #%d and #%d)", ErrDuplicateID, id, first+1, i+1))
		} else {
			seen[id] = i
		}
		if math.IsNaN(t.DurationWeeks) || math.IsInf(t.DurationWeeks, 0) || t.DurationWeeks < 0 {
			problems = append(problems, fmt.Errorf("%w: %q has duration %v", ErrInvalidTask, id, t.DurationWeeks))
		}
		if t.Category != "" && !t.Category.Valid() {
			problems = append(problems, fmt.Errorf("%w: %q has category %q", ErrInvalidTask, id, t.Category))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// Bounds returns the earliest start and latest end among scheduled tasks.
func (p *Project) Bounds() (start, end time.Time, ok bool) {
	for _, t := range p.Tasks {
		if !t.Scheduled() {
			continue
		}
		if !ok || t.Start.Before(start) {
			start = t.Start
		}
		if !ok || t.End.After(end) {
			end = t.End
		}
		ok = true
	}
	return start, end, ok
}

// Horizon is a conservative upper bound for the last date a pass can reach:
// every task run back to back, doubled to leave room for weekends and holidays.
func (p *Project) Horizon() time.Time {
	days := 0
	for _, t := range p.Tasks {
		days += t.WorkingDays()
	}
	return p.StartDate.AddDate(0, 0, days*2+31)
}

func (p *Project) index(id string) int {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
