// Package risk overlays key-people absences on a computed schedule.
package risk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dealtimeline/internal/schedule"
)

var ErrInvalidAbsence = errors.New("risk: invalid absence")

// Absence is a period during which a key person is unavailable. End is
// exclusive, matching task end dates.
type Absence struct {
	Person string    `json:"person" yaml:"person"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
}

func (a Absence) Validate() error {
	if strings.TrimSpace(a.Person) == "" {
		return fmt.Errorf("%w: person is empty", ErrInvalidAbsence)
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return fmt.Errorf("%w: %s has no dates", ErrInvalidAbsence, a.Person)
	}
	if a.End.Before(a.Start) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidAbsence, a.Person)
	}
	return nil
}

// Warning flags a critical task that overlaps an absence.
type Warning struct {
	TaskID   string            `json:"task_id"`
	TaskName string            `json:"task_name"`
	Category schedule.Category `json:"category"`
	Person   string            `json:"person"`
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
}

// Critical reports whether absences on a task of category c are worth a warning.
func Critical(c schedule.Category) bool {
	return c == schedule.CategoryBottleneck || c == schedule.CategoryDecision
}

// Check returns one warning per (absence, critical task) pair whose periods
// overlap. Unscheduled tasks are skipped. Warnings are ordered by absence,
// then by task order.
func Check(tasks []schedule.Task, absences []Absence) []Warning {
	var out []Warning
	for _, a := range absences {
		for _, t := range tasks {
			if !Critical(t.Category) || !t.Scheduled() {
				continue
			}
			if overlaps(t.Start, t.End, a.Start, a.End) {
				out = append(out, Warning{
					TaskID:   t.ID,
					TaskName: t.Name,
					Category: t.Category,
					Person:   a.Person,
					From:     a.Start,
					To:       a.End,
				})
			}
		}
	}
	return out
}

// overlaps is true when the latest start is strictly before the earliest end.
func overlaps(s1, e1, s2, e2 time.Time) bool {
	latest := s1
	if s2.After(latest) {
		latest = s2
	}
	earliest := e1
	if e2.Before(earliest) {
		earliest = e2
	}
	return latest.Before(earliest)
}
