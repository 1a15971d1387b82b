package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dealtimeline/internal/config"
	"dealtimeline/internal/storage"
	logx "dealtimeline/pkg/logx"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestMapPlannerConfigResolvesRelativePaths(t *testing.T) {
	cfg := &config.Config{
		Project:  config.ProjectConfig{File: "deal.yaml", OutputDir: "out", Format: "json", Lang: "pt"},
		Calendar: config.CalendarConfig{Jurisdiction: "US", Extra: []config.ExtraHoliday{{Date: "2025-12-24"}}},
	}
	pc, err := mapPlannerConfig("/etc/dealtimeline/config.yaml", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pc.ProjectFile != "/etc/dealtimeline/deal.yaml" || pc.OutputDir != "/etc/dealtimeline/out" {
		t.Fatalf("paths=%s %s", pc.ProjectFile, pc.OutputDir)
	}
	if pc.Lang != "PT" || len(pc.Extra) != 1 || pc.Extra[0].Name == "" {
		t.Fatalf("planner config=%+v", pc)
	}

	cfg.Calendar.Extra[0].Date = "24/12/2025"
	if _, err := mapPlannerConfig("config.yaml", cfg); err == nil {
		t.Fatalf("expected bad extra date error")
	}
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		sc      *config.StorageConfig
		enabled bool
		driver  string
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", sc: &config.StorageConfig{Driver: "none"}},
		{name: "file", sc: &config.StorageConfig{Driver: "file", Path: "state"}, enabled: true, driver: "file"},
		{name: "sqlite no path", sc: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "postgres", sc: &config.StorageConfig{Driver: "postgresql", DSN: "postgres://x"}, enabled: true, driver: "postgres"},
		{name: "postgres no dsn", sc: &config.StorageConfig{Driver: "pgx"}, wantErr: true},
		{name: "bad busy timeout", sc: &config.StorageConfig{Driver: "sqlite", Path: "a.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown", sc: &config.StorageConfig{Driver: "mongo"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig("/srv/config.yaml", &config.Config{Storage: tt.sc})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v", err)
			}
			if enabled != tt.enabled || sc.Driver != tt.driver {
				t.Fatalf("enabled=%v driver=%q", enabled, sc.Driver)
			}
		})
	}
}

func TestMapNotifierConfigDefaults(t *testing.T) {
	ncfg, tcfg, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{
		Enabled:  true,
		Telegram: config.TelegramConfig{Token: "t", ChatID: 42},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if ncfg.DedupWindow != 6*time.Hour || tcfg.ChatID != 42 {
		t.Fatalf("notifier=%+v telegram=%+v", ncfg, tcfg)
	}
	if _, _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{Workers: -1}}); err == nil {
		t.Fatalf("expected negative workers error")
	}
}

func TestValidateConfigRejectsBadRefreshSpec(t *testing.T) {
	cfg := &config.Config{
		Project: config.ProjectConfig{File: "deal.yaml"},
		Refresh: config.RefreshConfig{Enabled: true, Spec: "whenever"},
	}
	if err := validateConfig("config.yaml", cfg); err == nil {
		t.Fatalf("expected refresh.spec error")
	}
	cfg.Refresh.Spec = "@hourly"
	if err := validateConfig("config.yaml", cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deal.yaml", `name: Holiday deal
start_date: "2025-12-22"
tasks:
  - id: T1
    name: Drafting
    duration_weeks: 1
`)
	cfgPath := writeFile(t, dir, "config.yaml", `
logging:
  level: error
project:
  file: deal.yaml
  output_dir: out
  format: both
calendar:
  jurisdiction: US
storage:
  driver: file
  path: state
`)

	a, err := NewApp(cfgPath)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	o, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	// Christmas Day is skipped.
	if row, _ := o.Report.Row("T1"); row.End != "2025-12-30" {
		t.Fatalf("T1 end=%s", row.End)
	}
	for _, name := range []string{"deal.timeline.txt", "deal.timeline.json"} {
		b, err := os.ReadFile(filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(b), "Drafting") {
			t.Fatalf("%s missing task row", name)
		}
	}

	st, err := storage.Open(context.Background(), storage.Config{Driver: "file", Path: filepath.Join(dir, "state")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	runs, err := st.RecentRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 || runs[0].Reason != "once" || !runs[0].OK {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
project:
  file: deal.yaml
refresh:
  enabled: true
  spec: "99:99"
`)
	if _, err := NewApp(cfgPath); err == nil {
		t.Fatalf("expected error")
	}
}
