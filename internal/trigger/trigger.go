// Package trigger runs the planner on a cron or interval schedule.
package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "dealtimeline/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Config mirrors the refresh section of the service config.
type Config struct {
	Enabled  bool
	Spec     string
	Timezone string
	// Timeout bounds one run; 0 means no limit.
	Timeout time.Duration
}

// Job is the work fired on each tick.
type Job func(ctx context.Context, reason string) error

// Status is a point-in-time view for health output.
type Status struct {
	Enabled  bool      `json:"enabled"`
	Spec     string    `json:"spec,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
	Next     time.Time `json:"next,omitempty"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_err,omitempty"`
	Runs     uint64    `json:"runs"`
	Skipped  uint64    `json:"skipped"`
}

// Trigger owns a robfig cron instance with at most one registered entry.
type Trigger struct {
	mu  sync.Mutex
	log logx.Logger
	job Job

	cfg    Config
	spec   Spec
	loc    *time.Location
	c      *cron.Cron
	entry  cron.EntryID
	runCtx context.Context

	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64

	lmu     sync.Mutex
	lastRun time.Time
	lastErr string
}

func New(cfg Config, job Job, log logx.Logger) *Trigger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Trigger{cfg: cfg, job: job, log: log.With(logx.String("comp", "trigger"))}
}

// Start registers the schedule and starts cron. Disabled configs are a no-op.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.c != nil {
		return nil
	}
	t.runCtx = ctx
	return t.startLocked()
}

func (t *Trigger) startLocked() error {
	if !t.cfg.Enabled {
		return nil
	}
	sp, err := ParseSpec(t.cfg.Spec)
	if err != nil {
		return err
	}
	t.loc = loadLocation(t.cfg.Timezone, t.log)
	t.spec = sp
	t.c = cron.New(cron.WithParser(parser), cron.WithLocation(t.loc))
	t.entry = t.c.Schedule(sp.Schedule(), cron.FuncJob(t.fire))
	t.c.Start()
	t.log.Info("trigger started",
		logx.String("spec", sp.Raw),
		logx.String("kind", sp.Kind.String()),
		logx.String("tz", t.loc.String()),
		logx.Time("next", t.c.Entry(t.entry).Next))
	return nil
}

// Stop halts cron and waits for a running job until ctx expires.
func (t *Trigger) Stop(ctx context.Context) {
	t.mu.Lock()
	c := t.c
	t.c = nil
	t.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		t.log.Warn("trigger stop timed out", logx.Err(ctx.Err()))
	}
}

// Apply swaps the config. A running trigger re-registers when the spec,
// timezone or enabled flag changed. The old schedule stays active if the new
// spec does not parse.
func (t *Trigger) Apply(cfg Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.cfg
	changed := old.Enabled != cfg.Enabled ||
		strings.TrimSpace(old.Spec) != strings.TrimSpace(cfg.Spec) ||
		strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone)
	if cfg.Enabled {
		if _, err := ParseSpec(cfg.Spec); err != nil {
			return err
		}
	}
	t.cfg = cfg
	if t.runCtx == nil || !changed {
		return nil
	}
	if t.c != nil {
		t.c.Stop()
		t.c = nil
	}
	return t.startLocked()
}

// Fire runs the job immediately, outside the schedule.
func (t *Trigger) Fire(reason string) {
	t.run(reason)
}

func (t *Trigger) fire() { t.run("schedule") }

func (t *Trigger) run(reason string) {
	if !t.running.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		t.log.Debug("previous run still in progress; skipping", logx.String("reason", reason))
		return
	}
	defer t.running.Store(false)

	t.mu.Lock()
	ctx := t.runCtx
	timeout := t.cfg.Timeout
	t.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.runs.Add(1)
	err := t.job(ctx, reason)

	t.lmu.Lock()
	t.lastRun = time.Now()
	t.lastErr = ""
	if err != nil {
		t.lastErr = err.Error()
	}
	t.lmu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		t.log.Warn("triggered run failed", logx.String("reason", reason), logx.Err(err))
	}
}

func (t *Trigger) Status() Status {
	t.mu.Lock()
	st := Status{Enabled: t.cfg.Enabled, Spec: t.spec.Raw}
	if t.loc != nil {
		st.Timezone = t.loc.String()
	}
	if t.c != nil {
		st.Next = t.c.Entry(t.entry).Next
	}
	t.mu.Unlock()

	t.lmu.Lock()
	st.LastRun = t.lastRun
	st.LastErr = t.lastErr
	t.lmu.Unlock()
	st.Runs = t.runs.Load()
	st.Skipped = t.skipped.Load()
	return st
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
