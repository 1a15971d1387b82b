package config

// Config is the service configuration. Unknown keys are rejected on load so a
// typo in a reloaded file is caught instead of silently ignored.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Project  ProjectConfig   `json:"project"`
	Calendar CalendarConfig  `json:"calendar"`
	Refresh  RefreshConfig   `json:"refresh"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	API      APIConfig       `json:"api"`
}

type LoggingConfig struct {
	Level       string      `json:"level"`
	Console     bool        `json:"console"`
	ConsoleJSON bool        `json:"console_json,omitempty"`
	File        LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ProjectConfig points at the project file and the report output.
//
// Example:
//
//	"project": { "file": "./deal.yaml", "output_dir": "./out", "format": "text", "lang": "EN" }
type ProjectConfig struct {
	File      string `json:"file"`
	Watch     bool   `json:"watch"`
	OutputDir string `json:"output_dir,omitempty"`
	// Format is "text", "json" or "both" (default "text").
	Format string `json:"format,omitempty"`
	Lang   string `json:"lang,omitempty"`
}

// CalendarConfig sets the jurisdiction used when the project file has none.
type CalendarConfig struct {
	Jurisdiction string `json:"jurisdiction"`
	// Extra holidays (YYYY-MM-DD) layered on top of the national calendar,
	// e.g. company closure days.
	Extra []ExtraHoliday `json:"extra,omitempty"`
}

type ExtraHoliday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// RefreshConfig controls periodic recomputation.
//
// Spec accepts "@daily", "@every 1h", "55m", "02:30" or a cron expression
// (optionally prefixed with "cron:").
type RefreshConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Lisbon"
	Timeout  string `json:"timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./dealtimeline.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://..." }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	History     int    `json:"history,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Enabled         bool           `json:"enabled"`
	Workers         int            `json:"workers"`
	QueueSize       int            `json:"queue_size"`
	RatePerSec      int            `json:"rate_per_sec"`
	RetryMax        int            `json:"retry_max"`
	RetryBase       string         `json:"retry_base"`
	RetryMaxDelay   string         `json:"retry_max_delay"`
	DedupWindow     string         `json:"dedup_window"`
	DedupMaxEntries int            `json:"dedup_max_entries"`
	PersistDedup    bool           `json:"persist_dedup,omitempty"`
	OnlyOnChange    bool           `json:"only_on_change,omitempty"`
	Telegram        TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// APIConfig controls the HTTP API.
//
// Binding to a non-loopback address requires Token or AllowInsecure.
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}
