package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"purrbot/internal/agenda"
	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

// Store is the slice of the storage layer the engine reads from.
type Store interface {
	ListUsers(ctx context.Context) ([]agenda.User, error)
	ListEventsOn(ctx context.Context, userID int64, day agenda.Date) ([]agenda.Event, error)
	ListBirthdays(ctx context.Context, userID int64) ([]agenda.Birthday, error)
}

// Notifier queues an outbound notification for delivery.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Registrar is the slice of the task scheduler the engine registers with.
type Registrar interface {
	AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	Remove(name string) bool
}

// Config carries the resolved reminder settings.
type Config struct {
	Enabled       bool
	MorningCheck  string // schedule spec, default "1m"
	MidnightCheck string // schedule spec, default "5m"
	GiftIdeasURL  string
	JobTimeout    time.Duration
}

const (
	morningJob  = "reminder.morning"
	midnightJob = "reminder.midnight"

	defaultMorningCheck  = "1m"
	defaultMidnightCheck = "5m"
	defaultJobTimeout    = 30 * time.Second
)

// Engine evaluates due reminders and hands rendered notifications to the
// notifier. It holds no goroutines of its own; the scheduler drives it.
type Engine struct {
	store  Store
	notify Notifier
	log    logx.Logger

	mu  sync.Mutex
	cfg Config

	now func() time.Time
}

func New(cfg Config, store Store, notify Notifier, log logx.Logger) *Engine {
	return &Engine{
		store:  store,
		notify: notify,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Apply swaps the runtime configuration. Changed schedule specs take effect
// on the next Register call.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) snapshot() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Register upserts both checks with the scheduler, or removes them when
// reminders are disabled. Safe to call again after Apply.
func (e *Engine) Register(sch Registrar) error {
	cfg := e.snapshot()
	if !cfg.Enabled {
		sch.Remove(morningJob)
		sch.Remove(midnightJob)
		e.log.Debug("reminder checks disabled")
		return nil
	}

	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	morning := cfg.MorningCheck
	if morning == "" {
		morning = defaultMorningCheck
	}
	midnight := cfg.MidnightCheck
	if midnight == "" {
		midnight = defaultMidnightCheck
	}

	if _, err := sch.AddSchedule(morningJob, morning, timeout, e.RunMorning); err != nil {
		return fmt.Errorf("register %s: %w", morningJob, err)
	}
	if _, err := sch.AddSchedule(midnightJob, midnight, timeout, e.RunMidnight); err != nil {
		return fmt.Errorf("register %s: %w", midnightJob, err)
	}
	return nil
}

// RunMorning sends the daily digest to every user whose morning_time equals
// the current wall-clock minute. One failing user never blocks the rest.
func (e *Engine) RunMorning(ctx context.Context) error {
	cfg := e.snapshot()
	if !cfg.Enabled {
		return nil
	}
	now := e.now()
	hhmm := now.Format("15:04")
	today := agenda.DateOf(now)

	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	matched, queued := 0, 0
	for _, u := range users {
		// "disabled" never equals a wall-clock minute, so opted-out users
		// fall through here too.
		if u.MorningTime != hhmm {
			continue
		}
		matched++
		if err := e.sendMorning(ctx, u, today, now); err != nil {
			e.log.Warn("morning digest failed",
				logx.Int64("user", u.ID), logx.Err(err))
			continue
		}
		queued++
	}
	if matched > 0 {
		e.log.Debug("morning check done",
			logx.String("at", hhmm), logx.Int("matched", matched), logx.Int("queued", queued))
	}
	return nil
}

func (e *Engine) sendMorning(ctx context.Context, u agenda.User, today agenda.Date, now time.Time) error {
	events, err := e.store.ListEventsOn(ctx, u.ID, today)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	birthdays, err := e.store.ListBirthdays(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list birthdays: %w", err)
	}
	msg := morningDigest(u, today, events, agenda.BirthdaysOn(birthdays, today))
	return e.notify.Notify(ctx, kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: u.ID},
		Text:    msg.Text,
		Options: msg.Opt,
		Key:     fmt.Sprintf("morning|%d|%s", u.ID, today.Storage()),
		Once:    agenda.NextMidnight(now),
	})
}

// RunMidnight alerts each user about their birthdays that just became
// current. The whole body is gated on the first minutes after midnight so
// a coarse check interval still fires exactly once per night.
func (e *Engine) RunMidnight(ctx context.Context) error {
	cfg := e.snapshot()
	if !cfg.Enabled {
		return nil
	}
	now := e.now()
	if !agenda.InMidnightWindow(now) {
		return nil
	}
	today := agenda.DateOf(now)

	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		birthdays, err := e.store.ListBirthdays(ctx, u.ID)
		if err != nil {
			e.log.Warn("birthday lookup failed",
				logx.Int64("user", u.ID), logx.Err(err))
			continue
		}
		due := agenda.BirthdaysOn(birthdays, today)
		if len(due) == 0 {
			continue
		}
		msg := birthdayAlert(due, today, cfg.GiftIdeasURL)
		err = e.notify.Notify(ctx, kit.Notification{
			Channel: "telegram",
			Target:  kit.ChatTarget{ChatID: u.ID},
			Text:    msg.Text,
			Options: msg.Opt,
			Key:     fmt.Sprintf("midnight|%d|%s", u.ID, today.Storage()),
			Once:    agenda.NextMidnight(now),
		})
		if err != nil {
			e.log.Warn("birthday alert failed",
				logx.Int64("user", u.ID), logx.Err(err))
		}
	}
	return nil
}
