package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAPIAddr   = "127.0.0.1:8080"
	DefaultOutputDir = "./out"
)

// ApplyDefaults fills omitted fields in place.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Project.Format == "" {
		cfg.Project.Format = "text"
	}
	if cfg.Project.OutputDir == "" {
		cfg.Project.OutputDir = DefaultOutputDir
	}
	if cfg.Project.Lang == "" {
		cfg.Project.Lang = "EN"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = DefaultAPIAddr
	}
	if cfg.Refresh.Enabled && strings.TrimSpace(cfg.Refresh.Spec) == "" {
		cfg.Refresh.Spec = "@daily"
	}
}

// Validate checks fields that can be verified without touching the network or
// the holiday provider.
func Validate(cfg *Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Project.File) == "" {
		errs = append(errs, errors.New("project.file is required"))
	}
	switch strings.ToLower(cfg.Project.Format) {
	case "text", "json", "both":
	default:
		errs = append(errs, fmt.Errorf("project.format: unknown format %q", cfg.Project.Format))
	}
	for i, h := range cfg.Calendar.Extra {
		if _, err := ParseDate(h.Date); err != nil {
			errs = append(errs, fmt.Errorf("calendar.extra[%d]: %w", i, err))
		}
	}
	if tz := strings.TrimSpace(cfg.Refresh.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("refresh.timezone: %w", err))
		}
	}
	if _, err := ParseDurationField("refresh.timeout", cfg.Refresh.Timeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "disabled", "off", "file", "sqlite", "sqlite3":
		case "postgres", "postgresql", "pgx":
			if strings.TrimSpace(cfg.Storage.DSN) == "" {
				errs = append(errs, errors.New("storage.dsn is required for postgres"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
		if n.Enabled && n.Telegram.Token != "" && n.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("notifier.telegram.chat_id is required when a token is set"))
		}
	}
	for path, raw := range map[string]string{
		"api.read_timeout":  cfg.API.ReadTimeout,
		"api.write_timeout": cfg.API.WriteTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
