package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"purrbot/internal/eventbus"
	logx "purrbot/pkg/logx"
)

// Scheduled jobs default to skipping a trigger while the previous run is
// still in flight, so a slow run can't stack up behind its schedule.
var defaultTaskOptions = TaskOptions{Overlap: OverlapSkipIfRunning}

// AddSchedule parses schedule and registers either a cron or an interval
// task. See ParseSchedule for the accepted formats.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	return s.AddScheduleOpt(name, schedule, timeout, defaultTaskOptions, job)
}

// AddScheduleOpt is AddSchedule with task options.
func (s *Service) AddScheduleOpt(name, schedule string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	ps, err := ParseSchedule(schedule)
	switch {
	case err != nil:
		return "", err
	case ps.Kind == SpecInterval:
		return s.AddIntervalOpt(name, ps.Every, timeout, opt, job)
	case ps.Kind == SpecCron:
		return s.AddCronOpt(name, ps.Cron, timeout, opt, job)
	}
	return "", fmt.Errorf("unsupported schedule kind")
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	return s.AddCronOpt(name, spec, timeout, defaultTaskOptions, job)
}

func (s *Service) AddInterval(name string, every, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	return s.AddIntervalOpt(name, every, timeout, defaultTaskOptions, job)
}

func (s *Service) AddCronOpt(name, spec string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	return s.upsert("cron", name, spec, timeout, opt, job)
}

func (s *Service) AddIntervalOpt(name string, every, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	return s.upsert("interval", name, fmt.Sprintf("@every %s", every), timeout, opt, job)
}

// upsert registers a definition under name, replacing any previous schedule
// with the same name so hot-reloads and repeated registrations never
// duplicate. The returned string is the name itself, which doubles as the
// stable handle for Remove.
func (s *Service) upsert(kind, name, spec string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	_ = s.removeLocked(name)

	d := scheduleDef{
		id:      fmt.Sprintf("%s:%d", kind, time.Now().UnixNano()),
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		opt:     opt,
		state:   &RunState{},
	}
	s.defs = append(s.defs, d)
	if s.c == nil {
		// Not started yet; Start() attaches pending definitions.
		return name, nil
	}

	if err := s.addCronLocked(&s.defs[len(s.defs)-1]); err != nil {
		s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return name, err
	}
	args := []logx.Field{logx.String("name", name), logx.String("id", d.id), logx.String("spec", spec), logx.Duration("timeout", timeout)}
	if next := s.nextRunsLocked(spec, 4); next != "" {
		args = append(args, logx.String("next", next))
	}
	s.log.Debug("schedule registered", args...)
	return name, nil
}

// Remove unschedules everything registered under name and reports whether
// anything was removed. Safe before Start; persisted definitions are
// forgotten either way.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	removed := s.removeLocked(name)
	s.mu.Unlock()

	if !removed {
		return false
	}
	s.log.Debug("schedule removed", logx.String("name", name))
	return true
}

// removeLocked detaches and forgets every definition with the given name.
// Call with s.mu held.
func (s *Service) removeLocked(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	removed := false
	kept := s.defs[:0]
	for i := range s.defs {
		d := s.defs[i]
		if d.name != name {
			kept = append(kept, d)
			continue
		}
		if s.c != nil && d.entryID != 0 {
			s.c.Remove(d.entryID)
		}
		removed = true
	}
	s.defs = kept
	return removed
}

// addCronLocked attaches a definition to the running cron instance.
// Call with s.mu held and s.c non-nil.
func (s *Service) addCronLocked(d *scheduleDef) error {
	spec := strings.TrimSpace(d.spec)

	// d points into s.defs, which later registrations may reallocate, so
	// the trigger closure captures everything by value. runCtx is pinned
	// here too; reading it under s.mu at trigger time would make runs
	// contend with Apply and restart.
	runCtx := s.runCtx
	name, timeout, opt, state, run := d.name, d.timeout, d.opt, d.state, d.job
	job := cron.FuncJob(func() {
		s.runTask(runCtx, name, timeout, opt, state, run)
	})

	// @every schedules get an early first trigger so periodic checks don't
	// sit out a full interval right after start.
	if after, ok := strings.CutPrefix(spec, "@every"); ok {
		if every, err := time.ParseDuration(strings.TrimSpace(after)); err == nil && every > 0 {
			loc := s.loc
			if loc == nil {
				loc = time.Local
			}
			d.entryID = s.c.Schedule(makeIntervalSchedule(every, s.cfg.FirstRunDelay, time.Now().In(loc)), job)
			return nil
		}
	}

	eid, err := s.c.AddJob(spec, job)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

// rebuildLocked creates a fresh cron instance in the configured timezone
// and attaches every known definition. Call with s.mu held.
func (s *Service) rebuildLocked() {
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for i := range s.defs {
		_ = s.addCronLocked(&s.defs[i])
	}
	s.c.Start()
}

// restartLocked drains the current cron instance and rebuilds it, used
// when the timezone changes mid-flight. Call with s.mu held.
func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.rebuildLocked()
	s.log.Info("service restarted", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc
	}
	s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
	return time.Local
}

// nextRunsLocked formats the next n trigger times of a spec for the debug
// log. Call with s.mu held.
func (s *Service) nextRunsLocked(spec string, n int) string {
	if n <= 0 || s.log.IsZero() || !s.log.Enabled(logx.LevelDebug) {
		return ""
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	t := time.Now().In(loc)
	parts := make([]string, 0, n)
	for range n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		parts = append(parts, t.Format("2006-01-02 15:04:05"))
	}
	return strings.Join(parts, ", ")
}

// runTask executes one trigger of a schedule on the cron goroutine.
func (s *Service) runTask(ctx context.Context, name string, timeout time.Duration, opt TaskOptions, state *RunState, run func(ctx context.Context) error) {
	if run == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		// trigger raced with shutdown
		return
	}

	start := time.Now()
	if opt.Overlap == OverlapSkipIfRunning {
		if !state.tryAcquire() {
			s.publishTask("task.skipped", TaskEvent{Name: name, Started: start, Error: "overlap_skip"})
			s.log.Debug("task skipped due to overlap", logx.String("task", name))
			return
		}
		defer state.release()
	}

	s.log.Debug("task.started", logx.String("task", name))
	s.publishTask("task.started", TaskEvent{Name: name, Started: start})

	err := s.invoke(ctx, name, timeout, run)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("task.failed", logx.String("task", name), logx.Err(err), logx.Duration("dur", dur))
		s.publishTask("task.failed", TaskEvent{Name: name, Started: start, Duration: dur, Error: err.Error()})
		return
	}
	// Slow runs get promoted to info so they stay visible without debug
	// logging turned on.
	if dur >= 750*time.Millisecond {
		s.log.Info("task.completed", logx.String("task", name), logx.Duration("dur", dur))
	} else {
		s.log.Debug("task.completed", logx.String("task", name), logx.Duration("dur", dur))
	}
	s.publishTask("task.finished", TaskEvent{Name: name, Started: start, Duration: dur})
}

// invoke runs one job with an optional timeout. Panics become errors so a
// bad job cannot kill the cron goroutine.
func (s *Service) invoke(ctx context.Context, name string, timeout time.Duration, run func(ctx context.Context) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("task.panic", logx.String("task", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return run(ctx)
}

// publishTask emits a task lifecycle event when a bus is attached.
func (s *Service) publishTask(typ string, ev TaskEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}
