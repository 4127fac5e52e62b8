package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Storage is required in practice (the assistant is useless without
	// persisted entries) but kept optional in shape: nil disables it, which
	// is useful for dry-run smoke tests.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Scheduler controls the trigger service that drives reminder checks.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Reminders controls the morning digest and midnight birthday checks.
	Reminders RemindersConfig `json:"reminders"`

	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Assistant AssistantConfig `json:"assistant"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// GroupLog optionally names a chat ("<chat_id>" or "<chat_id>:<thread_id>")
	// that receives WARN+ log lines when logging.telegram is enabled.
	GroupLog string `json:"group_log,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// LoggingConfig mirrors the logx sinks: console, append-only file, and
// the optional telegram mirror.
type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // default ./purrbot.log
}

// LoggingTelegram mirrors selected records into the chat named by
// telegram.group_log.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"` // default WARN
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./purrbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls the trigger service.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Trigger timezone. Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	// FirstRunDelay sets how soon after startup interval schedules fire
	// their first trigger, instead of waiting out a full interval.
	// Go duration string, default "10s".
	FirstRunDelay string `json:"first_run_delay,omitempty"`
}

// RemindersConfig controls the two periodic reminder checks.
//
// MorningCheck/MidnightCheck are schedule specs in the scheduler's syntax
// (bare Go durations, "every:...", "cron:...", or "HH:MM" intervals).
// Defaults: "1m" and "5m". The midnight check gates its own body on the
// [00:00, 00:05) window, so its schedule only has to tick often enough to
// land inside it.
type RemindersConfig struct {
	Enabled       bool   `json:"enabled"`
	MorningCheck  string `json:"morning_check,omitempty"`
	MidnightCheck string `json:"midnight_check,omitempty"`

	// GiftIdeasURL backs the inline button on midnight birthday alerts.
	GiftIdeasURL string `json:"gift_ideas_url,omitempty"`

	// JobTimeout bounds one check run. Go duration string, default "30s".
	JobTimeout string `json:"job_timeout,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled    bool `json:"enabled"`
	Workers    int  `json:"workers"`
	QueueSize  int  `json:"queue_size"`
	RatePerSec int  `json:"rate_per_sec"`

	// Retry knobs for failed sends: attempt count and exponential
	// backoff bounds.
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`

	// DedupWindow suppresses repeat sends of the same dedup key;
	// PersistDedup keeps the marks in the store across restarts.
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// AssistantConfig tunes the interactive views.
//
// Zero values fall back to the view defaults (10 recent events, 5 recent
// photos, 30-day birthday lookahead).
type AssistantConfig struct {
	RecentEvents  int `json:"recent_events,omitempty"`
	RecentPhotos  int `json:"recent_photos,omitempty"`
	LookaheadDays int `json:"lookahead_days,omitempty"`

	// Keywords overrides the free-text phrases that trigger the quick
	// schedule reply.
	Keywords []string `json:"keywords,omitempty"`
}
