package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"purrbot/internal/assistant"
	"purrbot/internal/config"
	"purrbot/internal/eventbus"
	"purrbot/internal/notifier"
	"purrbot/internal/reminder"
	rtsup "purrbot/internal/runtime/supervisor"
	"purrbot/internal/storage"
	"purrbot/internal/task/scheduler"
	kit "purrbot/internal/transport"
	telegram "purrbot/internal/transport/telegram/adapter"
	"purrbot/internal/transport/telegram/router"
	logx "purrbot/pkg/logx"
)

// App owns the service graph: config, logging, storage, the Telegram
// adapter, the scheduler that drives the reminder checks, the notifier
// pipeline and the interactive assistant behind the router.
type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	adapter kit.Adapter
	updates chan kit.Update

	sched  *scheduler.Service
	notif  *notifier.Service
	remind *reminder.Engine
	assist *assistant.Service
	router *router.Router
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	tcfg := telegram.Config{Token: cfg.Telegram.Token}
	tcfg.PollTimeout, err = config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(tcfg, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies its config immediately, and the adapter is the only
	// Telegram sink we have. Bring the logger up with Telegram output off,
	// aim it at the group-log target, then switch to the configured state
	// so the first Apply cannot warn about a missing target.
	logSvc, log := logx.New(logConfigFrom(cfg, false), ad)
	log = log.With(logx.String("comp", "app"))
	applyLogTarget(logSvc, cfg)
	logSvc.Apply(logConfigFrom(cfg, cfg.Logging.Telegram.Enabled))

	bus := eventbus.New()

	var store *storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	// A nil *Store must stay a nil interface here, or the notifier would see
	// a non-nil MarkStore and keep querying a disabled backend.
	var marks notifier.MarkStore
	if store != nil {
		marks = store
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, marks)

	remCfg, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil && remCfg.Enabled {
		log.Warn("storage disabled; reminder checks are off")
		remCfg.Enabled = false
	}
	remindEng := reminder.New(remCfg, store, notifSvc, log.With(logx.String("comp", "reminder")))

	assistSvc := assistant.New(mapAssistantConfig(cfg), store, log.With(logx.String("comp", "assistant")))

	var users router.UserSync
	if store != nil {
		users = store
	}
	rtr := router.New(log.With(logx.String("comp", "router")), ad, cfgm, users)
	assistSvc.Register(rtr)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		updates: make(chan kit.Update, 256),
		sched:   schedSvc,
		notif:   notifSvc,
		remind:  remindEng,
		assist:  assistSvc,
		router:  rtr,
	}, nil
}

// logConfigFrom maps the file config onto the logger, with the Telegram
// sink forced to the given state. Startup brings the sink up disabled,
// sets the target, then re-applies with the configured value.
func logConfigFrom(cfg *config.Config, telegramOn bool) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    telegramOn,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// applyLogTarget points the Telegram log sink at telegram.group_log, or
// clears it when the target is absent or unparsable.
func applyLogTarget(svc *logx.Service, cfg *config.Config) {
	if chatID, threadID, ok := parseGroupLogTarget(cfg.Telegram.GroupLog, cfg.Logging.Telegram.ThreadID); ok {
		svc.SetTelegramTarget(chatID, threadID)
		return
	}
	svc.SetTelegramTarget(0, 0)
}

// validateConfig is the reload gate: a snapshot that fails here is
// rejected before commit, so running services never see it.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapReminderConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

// Done closes when the run context ends, whether by a fatal service
// error or an explicit Stop. Before Start it is already closed.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return a.sup.Context().Done()
}

// Err reports the first terminal goroutine failure, if any.
func (a *App) Err() error {
	if a.sup != nil {
		return a.sup.Err()
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(validateConfig)
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if a.notif != nil && a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}
	if err := a.remind.Register(a.sched); err != nil {
		return err
	}

	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			a.logBusEvents(c, events)
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.watchReloads(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

// logBusEvents mirrors the event bus into debug logs. Task triggers fire
// every few minutes, so anything louder than debug would drown the log.
func (a *App) logBusEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}
