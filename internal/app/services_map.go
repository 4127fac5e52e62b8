package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"purrbot/internal/assistant"
	"purrbot/internal/config"
	"purrbot/internal/notifier"
	"purrbot/internal/reminder"
	sch "purrbot/internal/task/scheduler"
)

// parseGroupLogTarget decodes telegram.group_log: "<chat_id>" or
// "<chat_id>:<thread_id>". The logging section's thread id is the fallback.
func parseGroupLogTarget(raw string, defThread int) (int64, int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}
	chatPart, threadPart, hasThread := strings.Cut(raw, ":")
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	thread := defThread
	if hasThread {
		t, err := strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil {
			return 0, 0, false
		}
		thread = t
	}
	return chatID, thread, true
}

func mapSchedulerConfig(cfg *config.Config) (sch.Config, error) {
	if cfg == nil {
		return sch.Config{}, nil
	}
	firstRun, err := config.ParseDurationOrDefault("scheduler.first_run_delay", cfg.Scheduler.FirstRunDelay, 10*time.Second)
	if err != nil {
		return sch.Config{}, err
	}
	return sch.Config{
		Enabled:       cfg.Scheduler.Enabled,
		Timezone:      cfg.Scheduler.Timezone,
		FirstRunDelay: firstRun,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	// An omitted section means "on with defaults"; the notifier fills in
	// the zero values itself.
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{Enabled: true, PersistDedup: true}, nil
	}
	nc := cfg.Notifier
	retryBase, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	if nc.Workers < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.workers must be >= 0")
	}
	if nc.QueueSize < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.queue_size must be >= 0")
	}
	if nc.RetryMax < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.retry_max must be >= 0")
	}
	return notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	if cfg == nil {
		return reminder.Config{}, nil
	}
	rc := cfg.Reminders
	if spec := strings.TrimSpace(rc.MorningCheck); spec != "" {
		if _, err := sch.ParseSchedule(spec); err != nil {
			return reminder.Config{}, fmt.Errorf("reminders.morning_check: %w", err)
		}
	}
	if spec := strings.TrimSpace(rc.MidnightCheck); spec != "" {
		if _, err := sch.ParseSchedule(spec); err != nil {
			return reminder.Config{}, fmt.Errorf("reminders.midnight_check: %w", err)
		}
	}
	jobTimeout, err := config.ParseDurationOrDefault("reminders.job_timeout", rc.JobTimeout, 30*time.Second)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		Enabled:       rc.Enabled,
		MorningCheck:  rc.MorningCheck,
		MidnightCheck: rc.MidnightCheck,
		GiftIdeasURL:  rc.GiftIdeasURL,
		JobTimeout:    jobTimeout,
	}, nil
}

func mapAssistantConfig(cfg *config.Config) assistant.Config {
	if cfg == nil {
		return assistant.Config{}
	}
	ac := cfg.Assistant
	return assistant.Config{
		RecentEvents:  ac.RecentEvents,
		RecentPhotos:  ac.RecentPhotos,
		LookaheadDays: ac.LookaheadDays,
		Keywords:      ac.Keywords,
	}
}
