package templates

import (
	"strings"

	"dealtimeline/internal/schedule"
)

const (
	vddPhase         = "Phase 1: Preparation"
	confirmatoryDD   = "Confirmatory Due Diligence"
	vddShortenSuffix = " (Shortened due to VDD)"
)

// vddAnchors are the kick-off tasks the VDD block is inserted after.
var vddAnchors = []string{"T1.1", "F1.1"}

// InjectVendorDueDiligence inserts the VDD work stream after the first kick-off
// task (or at the front when there is none) and shortens confirmatory due
// diligence longer than three weeks by two weeks. It reports whether the
// project changed; a project that already has VDD.1 is left alone.
func InjectVendorDueDiligence(p *schedule.Project) bool {
	if _, ok := p.Task("VDD.1"); ok {
		return false
	}

	idx, anchor := 0, vddAnchors[0]
	for i, t := range p.Tasks {
		if t.ID == vddAnchors[0] || t.ID == vddAnchors[1] {
			idx, anchor = i+1, t.ID
			break
		}
	}

	block := []schedule.Task{
		{ID: "VDD.1", Name: "Selection of VDD Advisors (Financial, Legal, Tax)", Phase: vddPhase, DurationWeeks: 2, Predecessors: []string{anchor}, Category: schedule.CategoryDecision},
		{ID: "VDD.2", Name: "Financial VDD Execution", Phase: vddPhase, DurationWeeks: 4, Predecessors: []string{"VDD.1"}, Category: schedule.CategoryStandard},
		{ID: "VDD.3", Name: "Tax & Legal VDD Execution", Phase: vddPhase, DurationWeeks: 4, Predecessors: []string{"VDD.1"}, Category: schedule.CategoryStandard},
		{ID: "VDD.4", Name: "VDD Reports Draft Review", Phase: vddPhase, DurationWeeks: 2, Predecessors: []string{"VDD.2", "VDD.3"}, Category: schedule.CategoryBottleneck},
	}

	tasks := make([]schedule.Task, 0, len(p.Tasks)+len(block))
	tasks = append(tasks, p.Tasks[:idx]...)
	tasks = append(tasks, block...)
	tasks = append(tasks, p.Tasks[idx:]...)

	for i := range tasks {
		t := &tasks[i]
		if strings.Contains(t.Name, confirmatoryDD) && t.DurationWeeks > 3 {
			t.DurationWeeks -= 2
			t.Name += vddShortenSuffix
		}
	}
	p.ReplaceTasks(tasks)
	return true
}
