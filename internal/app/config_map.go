package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dealtimeline/internal/api"
	"dealtimeline/internal/calendar"
	"dealtimeline/internal/config"
	"dealtimeline/internal/notifier"
	"dealtimeline/internal/report"
	"dealtimeline/internal/storage"
	"dealtimeline/internal/trigger"
	logx "dealtimeline/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:       cfg.Logging.Level,
		Console:     cfg.Logging.Console,
		ConsoleJSON: cfg.Logging.ConsoleJSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// resolvePath interprets relative paths against the config file's directory.
func resolvePath(cfgPath, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}

func mapPlannerConfig(cfgPath string, cfg *config.Config) (PlannerConfig, error) {
	extra := make([]calendar.Holiday, 0, len(cfg.Calendar.Extra))
	for i, h := range cfg.Calendar.Extra {
		d, err := config.ParseDate(h.Date)
		if err != nil {
			return PlannerConfig{}, fmt.Errorf("calendar.extra[%d]: %w", i, err)
		}
		name := strings.TrimSpace(h.Name)
		if name == "" {
			name = "Company closure"
		}
		extra = append(extra, calendar.Holiday{Date: d, Name: name})
	}
	return PlannerConfig{
		ProjectFile:  resolvePath(cfgPath, cfg.Project.File),
		Jurisdiction: cfg.Calendar.Jurisdiction,
		Extra:        extra,
		OutputDir:    resolvePath(cfgPath, cfg.Project.OutputDir),
		Format:       cfg.Project.Format,
		Lang:         report.ParseLang(cfg.Project.Lang),
		OnlyOnChange: cfg.Notifier != nil && cfg.Notifier.OnlyOnChange,
	}, nil
}

func mapTriggerConfig(cfg *config.Config) (trigger.Config, error) {
	timeout, err := config.ParseDurationOrDefault("refresh.timeout", cfg.Refresh.Timeout, 2*time.Minute)
	if err != nil {
		return trigger.Config{}, err
	}
	tc := trigger.Config{
		Enabled:  cfg.Refresh.Enabled,
		Spec:     cfg.Refresh.Spec,
		Timezone: cfg.Refresh.Timezone,
		Timeout:  timeout,
	}
	if tc.Enabled {
		if _, err := trigger.ParseSpec(tc.Spec); err != nil {
			return trigger.Config{}, fmt.Errorf("refresh.spec: %w", err)
		}
	}
	return tc, nil
}

func mapStorageConfig(cfgPath string, cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none", "disabled", "off":
		return storage.Config{}, false, nil
	case "file", "sqlite", "sqlite3":
		path := resolvePath(cfgPath, sc.Path)
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy, History: sc.History}, true, nil
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.dsn is required when storage.driver=%s", driver)
		}
		return storage.Config{Driver: "postgres", DSN: sc.DSN, History: sc.History}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, notifier.TelegramConfig, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{}, notifier.TelegramConfig{}, nil
	}
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 || n.DedupMaxEntries < 0 {
		return notifier.Config{}, notifier.TelegramConfig{}, fmt.Errorf("notifier: counts must be >= 0")
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, notifier.TelegramConfig{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, notifier.TelegramConfig{}, err
	}
	dedup, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, 6*time.Hour)
	if err != nil {
		return notifier.Config{}, notifier.TelegramConfig{}, err
	}
	return notifier.Config{
			Enabled:         n.Enabled,
			Workers:         n.Workers,
			QueueSize:       n.QueueSize,
			RatePerSec:      n.RatePerSec,
			RetryMax:        n.RetryMax,
			RetryBase:       retryBase,
			RetryMaxDelay:   retryMaxDelay,
			DedupWindow:     dedup,
			DedupMaxEntries: n.DedupMaxEntries,
			PersistDedup:    n.PersistDedup,
		}, notifier.TelegramConfig{
			Token:    n.Telegram.Token,
			ChatID:   n.Telegram.ChatID,
			ThreadID: n.Telegram.ThreadID,
		}, nil
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	rt, err := config.ParseDurationOrDefault("api.read_timeout", cfg.API.ReadTimeout, 10*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	wt, err := config.ParseDurationOrDefault("api.write_timeout", cfg.API.WriteTimeout, 30*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Enabled:       cfg.API.Enabled,
		Addr:          cfg.API.Addr,
		Token:         cfg.API.Token,
		AllowInsecure: cfg.API.AllowInsecure,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
	}, nil
}

// validateConfig is the transactional reload gate: a config that fails any
// mapping is rejected before it is committed.
func validateConfig(cfgPath string, cfg *config.Config) error {
	if _, err := mapPlannerConfig(cfgPath, cfg); err != nil {
		return err
	}
	if _, err := mapTriggerConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfgPath, cfg); err != nil {
		return err
	}
	if _, _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	_, err := mapAPIConfig(cfg)
	return err
}
