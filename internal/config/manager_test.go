package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	body := `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: "DEBUG"
  console: true
storage:
  driver: "sqlite"
  path: "./purrbot.db"
scheduler:
  enabled: true
  timezone: "Europe/Kiev"
  first_run_delay: "10s"
reminders:
  enabled: true
  morning_check: "1m"
  midnight_check: "5m"
notifier:
  enabled: true
  workers: 2
  queue_size: 128
  rate_per_sec: 3
  retry_max: 2
  retry_base: "500ms"
  retry_max_delay: "10s"
  dedup_window: "1m"
  dedup_max_entries: 1000
  persist_dedup: true
assistant:
  recent_events: 10
  recent_photos: 5
  lookahead_days: 30
`
	m := NewConfigManager(writeTemp(t, "config.yaml", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q, want %q", cfg.Telegram.Token, "123:abc")
	}
	if cfg.Scheduler.Timezone != "Europe/Kiev" {
		t.Fatalf("timezone = %q, want %q", cfg.Scheduler.Timezone, "Europe/Kiev")
	}
	if cfg.Reminders.MorningCheck != "1m" || cfg.Reminders.MidnightCheck != "5m" {
		t.Fatalf("reminder checks = %q/%q, want 1m/5m", cfg.Reminders.MorningCheck, cfg.Reminders.MidnightCheck)
	}
	if cfg.Notifier == nil || !cfg.Notifier.PersistDedup {
		t.Fatalf("notifier section not decoded: %+v", cfg.Notifier)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get returned a different snapshot")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	body := `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
  owner_user_ids: [1]
logging:
  level: "INFO"
`
	m := NewConfigManager(writeTemp(t, "config.yaml", body))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("Parse accepted unknown key, want error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"empty means zero", "", 0, false},
		{"seconds", "10s", 10 * time.Second, false},
		{"spaces trimmed", " 1m ", time.Minute, false},
		{"negative rejected", "-5s", 0, true},
		{"garbage rejected", "soon", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDurationField("test.path", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Logging:   LoggingConfig{Level: "INFO", Console: true},
		Reminders: RemindersConfig{Enabled: true, MorningCheck: "1m"},
	}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "DEBUG", Console: true},
		Reminders: RemindersConfig{Enabled: true, MorningCheck: "30s"},
	}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	wantSections := map[string]bool{"logging": true, "reminders": true}
	if len(changed) != len(wantSections) {
		t.Fatalf("changed = %v, want sections %v", changed, wantSections)
	}
	for _, s := range changed {
		if !wantSections[s] {
			t.Fatalf("unexpected changed section %q in %v", s, changed)
		}
	}
	if len(attrs) == 0 {
		t.Fatalf("expected log attrs for changed sections")
	}

	if changed, _ := SummarizeConfigChange(oldCfg, oldCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}
}
