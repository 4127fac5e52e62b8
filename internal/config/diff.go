package config

import (
	"reflect"
	"sort"
	"strings"

	logx "purrbot/pkg/logx"
)

// changeSet accumulates the reload summary: section names for the
// "changed=" log field plus structured attrs describing the new values.
type changeSet struct {
	sections []string
	attrs    []logx.Field
}

func (c *changeSet) record(section string, attrs ...logx.Field) {
	c.sections = append(c.sections, section)
	c.attrs = append(c.attrs, attrs...)
}

func trimDiffers(a, b string) bool {
	return strings.TrimSpace(a) != strings.TrimSpace(b)
}

// SummarizeConfigChange reports which sections differ between two
// snapshots, with log-safe attrs for the new values. Secrets (the bot
// token, chat ids inside group_log) are reduced to set/unset booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out changeSet

	if trimDiffers(oldCfg.Telegram.PollTimeout, newCfg.Telegram.PollTimeout) ||
		trimDiffers(oldCfg.Telegram.GroupLog, newCfg.Telegram.GroupLog) {
		out.record("telegram",
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	oldL, newL := oldCfg.Logging, newCfg.Logging
	oldL.File.Path = strings.TrimSpace(oldL.File.Path)
	newL.File.Path = strings.TrimSpace(newL.File.Path)
	if oldL != newL {
		out.record("logging",
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Scheduler.Enabled != newCfg.Scheduler.Enabled ||
		trimDiffers(oldCfg.Scheduler.Timezone, newCfg.Scheduler.Timezone) ||
		trimDiffers(oldCfg.Scheduler.FirstRunDelay, newCfg.Scheduler.FirstRunDelay) {
		out.record("scheduler",
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.first_run_delay", strings.TrimSpace(newCfg.Scheduler.FirstRunDelay)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		out.record("reminders",
			logx.Bool("reminders.enabled", newCfg.Reminders.Enabled),
			logx.String("reminders.morning_check", strings.TrimSpace(newCfg.Reminders.MorningCheck)),
			logx.String("reminders.midnight_check", strings.TrimSpace(newCfg.Reminders.MidnightCheck)),
			logx.Bool("reminders.gift_ideas_set", strings.TrimSpace(newCfg.Reminders.GiftIdeasURL) != ""),
		)
	}

	oldN := notifierSection(oldCfg)
	newN := notifierSection(newCfg)
	if !reflect.DeepEqual(oldN, newN) {
		out.record("notifier",
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	oDriver, oBusy, oPathSet := storageKey(oldCfg.Storage)
	nDriver, nBusy, nPathSet := storageKey(newCfg.Storage)
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		out.record("storage",
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	if !reflect.DeepEqual(oldCfg.Assistant, newCfg.Assistant) {
		out.record("assistant",
			logx.Int("assistant.recent_events", newCfg.Assistant.RecentEvents),
			logx.Int("assistant.recent_photos", newCfg.Assistant.RecentPhotos),
			logx.Int("assistant.lookahead_days", newCfg.Assistant.LookaheadDays),
			logx.Int("assistant.keyword_count", len(newCfg.Assistant.Keywords)),
		)
	}

	sort.Strings(out.sections)
	return out.sections, out.attrs
}

// notifierSection normalizes an omitted notifier block to what the
// pipeline actually runs with, so removing the section and spelling out
// the defaults compare equal. Values match mapNotifierConfig plus the
// notifier's own clamps.
func notifierSection(cfg *Config) NotifierConfig {
	if cfg.Notifier == nil {
		return NotifierConfig{
			Enabled:         true,
			Workers:         2,
			QueueSize:       512,
			RatePerSec:      3,
			RetryBase:       "500ms",
			RetryMaxDelay:   "10s",
			DedupMaxEntries: 2000,
			PersistDedup:    true,
		}
	}
	return *cfg.Notifier
}

// storageKey reduces the storage section to the fields worth diffing.
// The path itself stays out of logs; only its presence is reported.
func storageKey(s *StorageConfig) (driver, busy string, pathSet bool) {
	if s == nil {
		return "", "", false
	}
	return strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path) != ""
}
