package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota + 1
	SpecInterval
)

func (k SpecKind) String() string {
	switch k {
	case SpecCron:
		return "cron"
	case SpecInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// Spec is a parsed refresh schedule.
type Spec struct {
	Kind   SpecKind
	Source string // "cron", "descriptor", "duration" or "hhmm"
	Raw    string
	// Expr is the cron expression for SpecCron.
	Expr string
	// Every is the period for SpecInterval.
	Every time.Duration

	sched cron.Schedule
}

// Schedule returns the robfig schedule for the spec.
func (s Spec) Schedule() cron.Schedule { return s.sched }

// parser accepts 5-field and 6-field (with seconds) expressions plus descriptors.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec accepts:
//   - "cron:<expr>" or a bare cron expression ("0 7 * * 1-5")
//   - descriptors ("@daily", "@every 1h")
//   - "interval:<duration>" or a bare Go duration ("55m")
//   - "HH:MM", meaning every day at that wall-clock time
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("empty schedule")
	}
	out := Spec{Raw: s}

	switch {
	case strings.HasPrefix(s, "cron:"):
		return parseCron(out, strings.TrimSpace(strings.TrimPrefix(s, "cron:")), "cron")
	case strings.HasPrefix(s, "interval:"):
		return parseInterval(out, strings.TrimSpace(strings.TrimPrefix(s, "interval:")))
	case strings.HasPrefix(s, "@"):
		return parseCron(out, s, "descriptor")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return parseInterval(out, d.String())
	}
	if h, m, err := parseHHMM(s); err == nil {
		return parseCron(out, fmt.Sprintf("%d %d * * *", m, h), "hhmm")
	}
	if sp, err := parseCron(out, s, "cron"); err == nil {
		return sp, nil
	}
	return Spec{}, fmt.Errorf("invalid schedule %q: expected cron, @descriptor, duration or HH:MM", s)
}

func parseCron(out Spec, expr, source string) (Spec, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	out.Kind = SpecCron
	out.Source = source
	out.Expr = expr
	out.sched = sched
	return out, nil
}

func parseInterval(out Spec, raw string) (Spec, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	if d < time.Second {
		return Spec{}, fmt.Errorf("interval %s is shorter than 1s", d)
	}
	out.Kind = SpecInterval
	out.Source = "duration"
	out.Every = d
	out.sched = cron.Every(d)
	return out, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
