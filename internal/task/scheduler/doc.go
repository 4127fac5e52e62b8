// Package scheduler registers cron and interval schedules and runs the
// attached jobs when they trigger.
//
// Schedules are upserted by name, so re-registration after a config reload
// replaces the previous definition instead of duplicating it. Runs happen on
// the cron goroutine with a per-schedule timeout, panic capture, and an
// overlap policy that skips a trigger while the previous run is still in
// flight. Interval schedules fire their first trigger shortly after Start()
// (Config.FirstRunDelay) instead of waiting out a full interval.
package scheduler
