package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dealtimeline/internal/api"
	"dealtimeline/internal/calendar"
	"dealtimeline/internal/config"
	"dealtimeline/internal/eventbus"
	"dealtimeline/internal/notifier"
	"dealtimeline/internal/report"
	rtsup "dealtimeline/internal/runtime/supervisor"
	"dealtimeline/internal/storage"
	"dealtimeline/internal/trigger"
	logx "dealtimeline/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

type App struct {
	cfgPath   string
	base      logx.Logger
	startedAt time.Time

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	planner *Planner
	trigger *trigger.Trigger
	notif   *notifier.Service
	api     *api.Server

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchPath   string
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfgPath, cfg); err != nil {
		return nil, err
	}

	logSvc, base := logx.New(mapLogConfig(cfg))
	log := base.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfgPath, cfg); err != nil {
		logSvc.Close()
		return nil, err
	} else if enabled {
		openCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		st, err := storage.Open(openCtx, sc, base)
		cancel()
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ncfg, tcfg, err := mapNotifierConfig(cfg)
	if err != nil {
		closeAll(store, logSvc)
		return nil, err
	}
	var sender notifier.Sender
	if ncfg.Enabled && strings.TrimSpace(tcfg.Token) != "" {
		if sender, err = notifier.NewTelegramSender(tcfg); err != nil {
			closeAll(store, logSvc)
			return nil, err
		}
	}
	notifSvc := notifier.New(ncfg, sender, base, bus, store)

	pcfg, err := mapPlannerConfig(cfgPath, cfg)
	if err != nil {
		closeAll(store, logSvc)
		return nil, err
	}
	planner := NewPlanner(pcfg, calendar.NewCalProvider(), store, bus, notifSvc, base)

	trCfg, err := mapTriggerConfig(cfg)
	if err != nil {
		closeAll(store, logSvc)
		return nil, err
	}
	tr := trigger.New(trCfg, func(ctx context.Context, reason string) error {
		_, err := planner.Recompute(ctx, reason)
		return err
	}, base)

	a := &App{
		cfgPath: cfgPath,
		base:    base,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		planner: planner,
		trigger: tr,
		notif:   notifSvc,
	}

	acfg, err := mapAPIConfig(cfg)
	if err != nil {
		closeAll(store, logSvc)
		return nil, err
	}
	a.api = api.New(acfg, backend{a}, store, base)
	return a, nil
}

func closeAll(store storage.Store, logs *logx.Service) {
	if store != nil {
		_ = store.Close()
	}
	logs.Close()
}

// Planner exposes the planner for one-shot runs and tests.
func (a *App) Planner() *Planner { return a.planner }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.base)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(a.cfgPath, cfg)
	})

	if err := a.planner.Restore(ctx); err != nil {
		a.log.Warn("restore last schedule failed", logx.Err(err))
	}

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if err := a.trigger.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.api.Enabled() {
		a.api.Start(a.sup.Context())
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go("eventbus.log", func(c context.Context) error {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return nil
				case e, ok := <-events:
					if !ok {
						return nil
					}
					a.log.Debug("event", logx.String("type", string(e.Type)), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.restartProjectWatch(a.cfgm.Get())

	a.sup.Go("startup.recompute", func(context.Context) error {
		a.trigger.Fire("startup")
		return nil
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) applyConfig(c context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}
	if changed["storage"] {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLogConfig(next))

	if changed["notifier"] {
		a.applyNotifier(c, next)
	}
	if changed["refresh"] {
		if tc, err := mapTriggerConfig(next); err != nil {
			a.log.Warn("invalid refresh config; keeping previous", logx.Err(err))
		} else if err := a.trigger.Apply(tc); err != nil {
			a.log.Warn("refresh reschedule failed; keeping previous", logx.Err(err))
		}
	}
	if changed["api"] {
		if acfg, err := mapAPIConfig(next); err != nil {
			a.log.Warn("invalid api config; keeping previous", logx.Err(err))
		} else {
			a.api.Reconfigure(c, acfg)
		}
	}
	if changed["project"] || changed["calendar"] || changed["notifier"] {
		if pc, err := mapPlannerConfig(a.cfgPath, next); err != nil {
			a.log.Warn("invalid project config; keeping previous", logx.Err(err))
		} else {
			a.planner.Apply(pc)
		}
	}
	if changed["project"] {
		a.restartProjectWatch(next)
	}
	if changed["project"] || changed["calendar"] {
		a.sup.Go("config.recompute", func(context.Context) error {
			a.trigger.Fire("config-changed")
			return nil
		})
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyNotifier(c context.Context, cfg *config.Config) {
	ncfg, tcfg, err := mapNotifierConfig(cfg)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		return
	}
	prevEnabled := a.notif.Enabled()
	if ncfg.Enabled && strings.TrimSpace(tcfg.Token) != "" {
		sender, err := notifier.NewTelegramSender(tcfg)
		if err != nil {
			a.log.Warn("telegram sender rejected; keeping previous", logx.Err(err))
		} else {
			a.notif.SetSender(sender)
		}
	}
	a.notif.Apply(ncfg)
	nowEnabled := a.notif.Enabled()
	switch {
	case prevEnabled && !nowEnabled:
		a.log.Info("notifier disabled via config")
		stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !prevEnabled && nowEnabled:
		a.log.Info("notifier enabled via config")
		a.notif.Start(c)
	}
}

// restartProjectWatch (re)arms the project file watcher for cfg. A change of
// file path or of the watch flag cancels the previous watcher.
func (a *App) restartProjectWatch(cfg *config.Config) {
	path := ""
	if cfg != nil && cfg.Project.Watch {
		path = resolvePath(a.cfgPath, cfg.Project.File)
	}

	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if path == a.watchPath {
		return
	}
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
	a.watchPath = path
	if path == "" {
		return
	}

	wctx, cancel := context.WithCancel(a.sup.Context())
	a.watchCancel = cancel
	a.sup.GoRestart("project.watch", func(c context.Context) error {
		err := config.WatchFile(wctx, path, a.log, func() {
			a.log.Info("project file changed", logx.String("path", path))
			a.trigger.Fire("project-changed")
		})
		if wctx.Err() != nil {
			return nil
		}
		return err
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))
}

// Health is served on /healthz.
func (a *App) Health() any {
	out := map[string]any{
		"status":     "ok",
		"started_at": a.startedAt,
		"uptime":     time.Since(a.startedAt).Round(time.Second).String(),
		"trigger":    a.trigger.Status(),
	}
	if a.sup != nil {
		if err := a.sup.Err(); err != nil {
			out["status"] = "degraded"
		}
		out["supervisor"] = a.sup.Snapshot()
	}
	if sup := a.notif.Supervisor(); sup != nil {
		out["notifier"] = sup.Snapshot()
	}
	if a.bus != nil {
		out["events_dropped"] = a.bus.Dropped()
	}
	if o, ok := a.planner.Last(); ok {
		out["last_run"] = map[string]any{
			"id":         o.RunID,
			"at":         o.At,
			"reason":     o.Reason,
			"end_date":   o.Report.EndDate,
			"unresolved": len(o.Report.Unresolved),
		}
	}
	return out
}

// RunOnce computes, renders and persists one schedule, waits for the digest
// to be delivered, then releases every resource.
func (a *App) RunOnce(ctx context.Context) (*Outcome, error) {
	if err := a.planner.Restore(ctx); err != nil {
		a.log.Warn("restore last schedule failed", logx.Err(err))
	}
	if a.notif.Enabled() {
		a.notif.Start(ctx)
	}
	o, err := a.planner.Recompute(ctx, "once")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.notif.Enabled() {
		a.notif.Stop(stopCtx)
	}
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("storage close failed", logx.Err(cerr))
		}
	}
	a.logs.Close()
	return o, err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("trigger", 3*time.Second, func(c context.Context) error { a.trigger.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Stop(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// backend adapts the app to the HTTP API.
type backend struct{ a *App }

func (b backend) LatestReport() (report.Report, bool) { return b.a.planner.LatestReport() }

func (b backend) Calendar() (*calendar.Calendar, error) { return b.a.planner.Calendar() }

func (b backend) Recompute(ctx context.Context, reason string) (report.Report, error) {
	o, err := b.a.planner.Recompute(ctx, reason)
	if err != nil {
		return report.Report{}, err
	}
	return o.Report, nil
}

func (b backend) Health() any { return b.a.Health() }
