package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "purrbot/internal/runtime/supervisor"
	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	// out stores the current sink as a chan<- kit.Update; a typed nil
	// means detached.
	out atomic.Value

	runMu   sync.Mutex
	running bool

	// sup owns the adapter goroutines (poll loop, drop reporter, stop
	// watcher). Created on Start, canceled on Stop.
	sup *rtsup.Supervisor

	// droppedUpdates counts updates shed because the consumer lagged the
	// poll loop; surfaced as a periodic summary.
	droppedUpdates uint64

	menuMu   sync.Mutex
	menuHash uint64
	http     *http.Client
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout(cfg.PollTimeout)},
	})
	if err != nil {
		return nil, err
	}

	a := &Adapter{cfg: cfg, log: log, bot: b, http: &http.Client{Timeout: 8 * time.Second}}
	// Store a typed nil so later Loads always see the same dynamic type.
	var noSink chan<- kit.Update
	a.out.Store(noSink)
	a.registerHandlers()
	return a, nil
}

func pollTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Supervisor returns the adapter's internal supervisor, nil before Start.
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

// sendUpdate forwards one update to the current sink without blocking; the
// poll loop must never stall behind a slow consumer.
func (a *Adapter) sendUpdate(up kit.Update) {
	sink, _ := a.out.Load().(chan<- kit.Update)
	if sink == nil {
		return
	}
	select {
	case sink <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// Adapter trouble stays local; the app decides what is fatal.
		rtsup.WithCancelOnError(false),
	)
	a.sup = sup
	a.runMu.Unlock()

	// Dropped updates surface as a periodic summary, not per-update spam.
	sup.Go0("updates.drop_report", func(c context.Context) {
		a.dropReportLoop(c, cap(out))
	})

	// telebot owns its own loop and only returns on Stop(); tie that to
	// the supervisor context.
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	})

	// Long-poll under a restart loop: when Start returns with the context
	// still live, something broke inside telebot and polling should resume
	// after a backoff.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		if a.bot != nil {
			a.bot.Start()
		}
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)

	return nil
}

func (a *Adapter) dropReportLoop(ctx context.Context, chanCap int) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.reportDrops(chanCap) // final flush
			return
		case <-ticker.C:
			a.reportDrops(chanCap)
		}
	}
}

func (a *Adapter) reportDrops(chanCap int) {
	if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", chanCap))
	}
}

// Stop detaches the update sink and shuts the poll loop down, waiting at
// most a short grace window so shutdown stays snappy even mid long-poll.
func (a *Adapter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	sup, wasRunning := a.sup, a.running
	a.sup = nil
	a.running = false
	var noSink chan<- kit.Update
	a.out.Store(noSink)
	a.runMu.Unlock()

	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", atomic.LoadUint64(&a.droppedUpdates)))
	if !wasRunning {
		a.log.Debug("telegram stop called but not running")
		return nil
	}
	if sup != nil {
		sup.Cancel()
	}
	// telebot Stop should be fast; keep it off the shutdown path anyway.
	if a.bot != nil {
		go a.bot.Stop()
	}
	if sup == nil {
		return nil
	}

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	err := sup.Wait(wctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		a.log.Warn("telegram stop timed out", logx.Err(err))
	case sup.Context().Err() != nil:
		// Expected right after we canceled the supervisor ourselves.
		a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
	default:
		a.log.Warn("telegram stop error", logx.Err(err))
	}
	return nil
}
