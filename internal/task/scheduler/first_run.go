package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// firstRunSchedule wraps a base schedule and overrides the first trigger time.
// After the first trigger, it delegates to the base schedule.
type firstRunSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *firstRunSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// makeIntervalSchedule builds the schedule for an @every definition. When
// firstDelay is shorter than the interval, the first trigger fires that soon
// after start; otherwise the plain interval schedule is used.
func makeIntervalSchedule(every, firstDelay time.Duration, now time.Time) cron.Schedule {
	base := cron.Every(every)
	if firstDelay <= 0 || firstDelay >= every {
		return base
	}
	return &firstRunSchedule{base: base, first: now.Add(firstDelay)}
}
