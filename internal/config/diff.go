package config

import (
	"reflect"
	"strings"

	logx "dealtimeline/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (bot token, API token, database DSN) are never
// included; only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Project != newCfg.Project {
		changed = append(changed, "project")
		attrs = append(attrs,
			logx.String("project.file", newCfg.Project.File),
			logx.Bool("project.watch", newCfg.Project.Watch),
			logx.String("project.format", newCfg.Project.Format),
			logx.String("project.lang", newCfg.Project.Lang),
		)
	}

	if !reflect.DeepEqual(oldCfg.Calendar, newCfg.Calendar) {
		changed = append(changed, "calendar")
		attrs = append(attrs,
			logx.String("calendar.jurisdiction", newCfg.Calendar.Jurisdiction),
			logx.Int("calendar.extra", len(newCfg.Calendar.Extra)),
		)
	}

	if oldCfg.Refresh != newCfg.Refresh {
		changed = append(changed, "refresh")
		attrs = append(attrs,
			logx.Bool("refresh.enabled", newCfg.Refresh.Enabled),
			logx.String("refresh.spec", strings.TrimSpace(newCfg.Refresh.Spec)),
			logx.String("refresh.timezone", strings.TrimSpace(newCfg.Refresh.Timezone)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			attrs = append(attrs,
				logx.String("storage.driver", newCfg.Storage.Driver),
				logx.String("storage.path", newCfg.Storage.Path),
				logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			attrs = append(attrs,
				logx.Bool("notifier.enabled", n.Enabled),
				logx.Int("notifier.workers", n.Workers),
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
				logx.Bool("notifier.telegram_token_set", strings.TrimSpace(n.Telegram.Token) != ""),
			)
		}
	}

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", newCfg.API.Addr),
			logx.Bool("api.token_set", strings.TrimSpace(newCfg.API.Token) != ""),
		)
	}

	return changed, attrs
}
