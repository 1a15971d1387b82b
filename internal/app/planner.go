package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/config"
	"dealtimeline/internal/eventbus"
	"dealtimeline/internal/notifier"
	"dealtimeline/internal/report"
	"dealtimeline/internal/schedule"
	"dealtimeline/internal/storage"
	logx "dealtimeline/pkg/logx"
)

// ErrNoSchedule is returned when no recompute has succeeded yet.
var ErrNoSchedule = errors.New("no schedule computed yet")

// PlannerConfig is the slice of service config the planner reads per run.
type PlannerConfig struct {
	ProjectFile  string
	Jurisdiction string
	Extra        []calendar.Holiday
	OutputDir    string
	Format       string // text, json or both
	Lang         report.Lang
	OnlyOnChange bool
}

// Outcome is one successful recompute.
type Outcome struct {
	RunID    string
	At       time.Time
	Reason   string
	Source   string
	Project  *schedule.Project
	Result   schedule.Result
	Calendar *calendar.Calendar
	Report   report.Report
	Digest   string
	Files    []string
	Took     time.Duration
}

// Messenger is the notifier surface the planner uses.
type Messenger interface {
	Enabled() bool
	Notify(ctx context.Context, m notifier.Message) error
}

// Planner loads the project file, schedules it and publishes the result.
// Runs are serialized; a failed run leaves the previous outcome in place.
type Planner struct {
	log      logx.Logger
	provider calendar.HolidayProvider
	store    storage.Store
	bus      eventbus.Bus
	notif    Messenger
	now      func() time.Time

	cfgMu sync.RWMutex
	cfg   PlannerConfig

	runMu sync.Mutex

	mu         sync.RWMutex
	last       *Outcome
	lastDigest string
}

func NewPlanner(cfg PlannerConfig, provider calendar.HolidayProvider, store storage.Store, bus eventbus.Bus, notif Messenger, log logx.Logger) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Planner{
		log:      log.With(logx.String("comp", "planner")),
		provider: provider,
		store:    store,
		bus:      bus,
		notif:    notif,
		now:      time.Now,
		cfg:      cfg,
	}
}

func (p *Planner) Apply(cfg PlannerConfig) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

func (p *Planner) config() PlannerConfig {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// Last returns the latest successful outcome.
func (p *Planner) Last() (*Outcome, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.last != nil
}

// LatestReport returns the latest report, including one restored from storage.
func (p *Planner) LatestReport() (report.Report, bool) {
	o, ok := p.Last()
	if !ok {
		return report.Report{}, false
	}
	return o.Report, true
}

// Calendar returns the calendar of the latest outcome, or one for the
// configured jurisdiction when nothing was computed yet.
func (p *Planner) Calendar() (*calendar.Calendar, error) {
	if o, ok := p.Last(); ok && o.Calendar != nil {
		return o.Calendar, nil
	}
	cfg := p.config()
	return p.calendarFor(cfg.Jurisdiction, cfg.Extra)
}

// Restore seeds the last outcome from the store so the API and change
// detection survive a restart.
func (p *Planner) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	snap, ok, err := p.store.LatestSchedule(ctx)
	if err != nil || !ok {
		return err
	}
	var rep report.Report
	if err := json.Unmarshal(snap.Body, &rep); err != nil {
		return fmt.Errorf("decode stored schedule: %w", err)
	}
	p.mu.Lock()
	if p.last == nil {
		p.last = &Outcome{RunID: snap.RunID, At: snap.At, Reason: "restored", Report: rep, Digest: snap.Digest}
		p.lastDigest = snap.Digest
	}
	p.mu.Unlock()
	p.log.Info("restored last schedule", logx.String("run_id", snap.RunID), logx.Time("at", snap.At))
	return nil
}

func (p *Planner) calendarFor(jurisdiction string, extra []calendar.Holiday) (*calendar.Calendar, error) {
	if !p.provider.Supports(jurisdiction) {
		return nil, fmt.Errorf("%w: %q", calendar.ErrUnknownJurisdiction, jurisdiction)
	}
	prov := p.provider
	if len(extra) > 0 {
		prov = calendar.Chain{p.provider, calendar.StaticProvider{calendar.NormalizeJurisdiction(jurisdiction): extra}}
	}
	return calendar.New(prov, jurisdiction)
}

// Recompute runs one full pass. reason is recorded with the run.
func (p *Planner) Recompute(ctx context.Context, reason string) (*Outcome, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	started := p.now()
	cfg := p.config()
	rec := storage.RunRecord{ID: storage.NewRunID(), At: started, Reason: reason}
	log := p.log.With(logx.String("run_id", rec.ID), logx.String("reason", reason))

	loaded, err := config.LoadProject(cfg.ProjectFile, cfg.Jurisdiction)
	if err != nil {
		return nil, p.fail(ctx, log, rec, fmt.Errorf("load project: %w", err))
	}
	proj := loaded.Project
	rec.Project = proj.Name
	rec.Jurisdiction = proj.Jurisdiction
	rec.Tasks = len(proj.Tasks)
	p.publish(eventbus.ProjectLoaded, map[string]any{"project": proj.Name, "source": loaded.Source, "tasks": len(proj.Tasks)})

	if err := proj.Validate(); err != nil {
		return nil, p.fail(ctx, log, rec, err)
	}
	cal, err := p.calendarFor(proj.Jurisdiction, cfg.Extra)
	if err != nil {
		return nil, p.fail(ctx, log, rec, err)
	}

	// Schedule a copy; holiday lookups that fail leave nothing half-applied.
	work := proj.Clone()
	if err := cal.Prefetch(work.StartDate, work.Horizon()); err != nil {
		return nil, p.fail(ctx, log, rec, fmt.Errorf("holiday data: %w", err))
	}
	res := work.Recompute(cal)
	if err := cal.Err(); err != nil {
		return nil, p.fail(ctx, log, rec, fmt.Errorf("holiday data: %w", err))
	}

	rep := report.Build(work, cal, report.Options{Lang: cfg.Lang, Absences: loaded.Absences, Now: started})
	digest, err := reportDigest(rep)
	if err != nil {
		return nil, p.fail(ctx, log, rec, err)
	}

	files, err := writeOutputs(cfg.OutputDir, cfg.Format, outputBase(cfg.ProjectFile), rep)
	if err != nil {
		return nil, p.fail(ctx, log, rec, fmt.Errorf("write report: %w", err))
	}

	out := &Outcome{
		RunID:    rec.ID,
		At:       started,
		Reason:   reason,
		Source:   loaded.Source,
		Project:  work,
		Result:   res,
		Calendar: cal,
		Report:   rep,
		Digest:   digest,
		Files:    files,
		Took:     p.now().Sub(started),
	}

	rec.OK = true
	rec.Unresolved = res.Unresolved
	rec.Passes = res.Passes
	rec.EndDate = rep.EndDate
	rec.Digest = digest
	rec.TookMS = out.Took.Milliseconds()
	p.persist(ctx, log, rec, rep)

	p.mu.Lock()
	prevDigest := p.lastDigest
	p.last = out
	p.lastDigest = digest
	p.mu.Unlock()

	log.Info("schedule recomputed",
		logx.String("project", proj.Name),
		logx.String("jurisdiction", proj.Jurisdiction),
		logx.Int("tasks", len(work.Tasks)),
		logx.Int("passes", res.Passes),
		logx.Strings("unresolved", res.Unresolved),
		logx.String("end", rep.EndDate),
		logx.Int("risks", len(rep.Risks)),
		logx.Duration("took", out.Took))
	p.publish(eventbus.ScheduleRecomputed, out)

	if !cfg.OnlyOnChange || digest != prevDigest {
		p.notifyOutcome(ctx, log, out)
	}
	return out, nil
}

func (p *Planner) fail(ctx context.Context, log logx.Logger, rec storage.RunRecord, err error) error {
	rec.OK = false
	rec.Error = err.Error()
	rec.TookMS = p.now().Sub(rec.At).Milliseconds()
	log.Warn("recompute failed", logx.Err(err))
	if p.store != nil {
		if perr := p.store.AppendRun(ctx, rec); perr != nil {
			log.Warn("persist run failed", logx.Err(perr))
		}
	}
	p.publish(eventbus.ScheduleFailed, rec)
	p.notify(ctx, log, notifier.Message{
		Text:     fmt.Sprintf("Schedule recompute failed (%s): %v", rec.Reason, err),
		Priority: notifier.PriorityAlert,
		Key:      "fail|" + err.Error(),
	})
	return err
}

func (p *Planner) persist(ctx context.Context, log logx.Logger, rec storage.RunRecord, rep report.Report) {
	if p.store == nil {
		return
	}
	if err := p.store.AppendRun(ctx, rec); err != nil {
		log.Warn("persist run failed", logx.Err(err))
	}
	body, err := json.Marshal(rep)
	if err != nil {
		log.Warn("encode schedule failed", logx.Err(err))
		return
	}
	if err := p.store.SaveSchedule(ctx, storage.Snapshot{RunID: rec.ID, At: rec.At, Digest: rec.Digest, Body: body}); err != nil {
		log.Warn("persist schedule failed", logx.Err(err))
	}
}

func (p *Planner) notifyOutcome(ctx context.Context, log logx.Logger, o *Outcome) {
	p.notify(ctx, log, notifier.Message{Text: summaryText(o), Priority: notifier.PriorityInfo, Key: "digest|" + o.Digest})
	for _, w := range o.Report.Risks {
		p.notify(ctx, log, notifier.Message{
			Text: fmt.Sprintf("%s (%s) overlaps %s's absence %s to %s",
				w.TaskName, w.Category, w.Person, w.From.Format("2006-01-02"), w.To.Format("2006-01-02")),
			Priority: notifier.PriorityWarning,
		})
	}
	if !o.Result.Complete() {
		p.notify(ctx, log, notifier.Message{
			Text:     "Unscheduled tasks (cycle or missing start): " + strings.Join(o.Result.Unresolved, ", "),
			Priority: notifier.PriorityWarning,
		})
	}
}

func (p *Planner) notify(ctx context.Context, log logx.Logger, m notifier.Message) {
	if p.notif == nil || !p.notif.Enabled() {
		return
	}
	if err := p.notif.Notify(ctx, m); err != nil {
		log.Debug("notify skipped", logx.Err(err))
	}
}

func (p *Planner) publish(t eventbus.Type, data any) {
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: t, Data: data})
	}
}

func summaryText(o *Outcome) string {
	r := o.Report
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d tasks", r.Project, len(r.Rows))
	if r.EndDate != "" {
		fmt.Fprintf(&b, ", %s to %s", r.StartDate, r.EndDate)
	}
	fmt.Fprintf(&b, " (%s, %d holidays)", r.Jurisdiction, len(r.Holidays))
	if n := len(r.Unresolved); n > 0 {
		fmt.Fprintf(&b, ", %d unscheduled", n)
	}
	if n := len(r.Risks); n > 0 {
		fmt.Fprintf(&b, ", %d absence risks", n)
	}
	return b.String()
}

// reportDigest hashes the report without its generation time so unchanged
// schedules produce the same digest.
func reportDigest(r report.Report) (string, error) {
	r.GeneratedAt = time.Time{}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func outputBase(projectFile string) string {
	base := filepath.Base(projectFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "timeline"
	}
	return base + ".timeline"
}

// writeOutputs renders r into dir as <base>.txt and/or <base>.json.
func writeOutputs(dir, format, base string, r report.Report) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	var files []string
	if format == "" || format == "text" || format == "both" {
		var buf bytes.Buffer
		if err := report.WriteText(&buf, r); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, base+".txt")
		if err := writeFileAtomic(path, buf.Bytes()); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	if format == "json" || format == "both" {
		var buf bytes.Buffer
		if err := report.WriteJSON(&buf, r); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, base+".json")
		if err := writeFileAtomic(path, buf.Bytes()); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
