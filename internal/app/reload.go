package app

import (
	"context"
	"strings"
	"time"

	"purrbot/internal/config"
	logx "purrbot/pkg/logx"
)

// watchReloads consumes validated config snapshots and applies them to
// the running services. Snapshots arrive already committed; application
// failures keep the previous per-service config rather than rolling the
// whole snapshot back.
func (a *App) watchReloads(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			next = latestConfig(sub, next)
			a.applyReload(ctx, last, next)
			last = next
		}
	}
}

// latestConfig drains queued snapshots so a burst of file writes applies
// once, with the newest content.
func latestConfig(sub <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer := <-sub:
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

func (a *App) applyReload(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Debug("config change summary", fields...)
	} else {
		a.log.Debug("config reload received, but no effective changes detected")
	}

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
			break
		}
	}

	// Target first so enabling Telegram logging cannot warn mid-apply.
	applyLogTarget(a.logs, next)
	a.logs.Apply(logConfigFrom(next, next.Logging.Telegram.Enabled))

	wasOn := a.sched.Enabled()
	if schedCfg, err := mapSchedulerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(schedCfg)
		a.flipService(ctx, "scheduler", wasOn, schedCfg.Enabled, a.sched.Start, a.sched.Stop)
	}

	if a.notif != nil {
		wasOn := a.notif.Enabled()
		if ncfg, err := mapNotifierConfig(next); err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		} else {
			a.notif.Apply(ncfg)
			a.flipService(ctx, "notifier", wasOn, ncfg.Enabled, a.notif.Start, a.notif.Stop)
		}
	}

	if remCfg, err := mapReminderConfig(next); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		if a.store == nil && remCfg.Enabled {
			a.log.Warn("storage disabled; reminder checks stay off")
			remCfg.Enabled = false
		}
		a.remind.Apply(remCfg)
		if err := a.remind.Register(a.sched); err != nil {
			a.log.Warn("reminder re-register failed", logx.Err(err))
		}
	}

	a.assist.Apply(mapAssistantConfig(next))

	// One concise INFO line per reload; details went to debug above.
	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
	} else {
		a.log.Info("config reloaded (no changes)")
	}
}

// flipService starts or stops a service whose enabled flag changed on
// reload. Apply has already run, so only the transition is left.
func (a *App) flipService(ctx context.Context, name string, was, now bool, start, stop func(context.Context)) {
	switch {
	case was && !now:
		a.log.Info(name + " disabled via config")
		sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		stop(sctx)
		cancel()
	case !was && now:
		a.log.Info(name + " enabled via config")
		start(ctx)
	}
}
