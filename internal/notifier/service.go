package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"purrbot/internal/eventbus"
	rtsup "purrbot/internal/runtime/supervisor"
	kit "purrbot/internal/transport"
	logx "purrbot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Service is the async notification pipeline: a bounded queue in front of
// a worker pool, with a global rate limit, retry on transient failures,
// and duplicate suppression. Safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus
	store   MarkStore

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	enqueueWG sync.WaitGroup

	queue    chan pending
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while a stop is in progress

	// suppress maps dedup key -> suppress-until instant.
	dmu      sync.Mutex
	suppress map[string]time.Time

	// marks queued for best-effort persistence
	persistCh chan dedupWrite
}

// pending is one queued notification with its dedup key precomputed at
// enqueue time.
type pending struct {
	n   kit.Notification
	key string
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus, store MarkStore) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log, bus: bus, store: store}
	s.suppress = map[string]time.Time{}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the runtime configuration. Worker and queue sizing take
// effect on the next Start; the rate limit applies immediately.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

// orDefault substitutes def for unset (non-positive) numeric fields.
func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (s *Service) applyLocked(cfg Config) {
	cfg.Workers = orDefault(cfg.Workers, 2)
	cfg.QueueSize = orDefault(cfg.QueueSize, 512)
	cfg.RatePerSec = orDefault(cfg.RatePerSec, 3)
	cfg.RetryMax = orDefault(cfg.RetryMax, 2)
	cfg.RetryBase = orDefault(cfg.RetryBase, 500*time.Millisecond)
	cfg.RetryMaxDelay = orDefault(cfg.RetryMaxDelay, 10*time.Second)
	cfg.DedupMaxEntries = orDefault(cfg.DedupMaxEntries, 2000)
	// A zero dedup window is a valid setting (dedup by explicit Once
	// instants only); negatives clamp.
	cfg.DedupWindow = max(cfg.DedupWindow, 0)

	s.cfg = cfg
	// Burst equals the per-second rate so short spikes don't block hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start brings up the queue and worker pool. Idempotent; when a Stop is
// in flight it waits for that teardown to finish first.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	for s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan pending, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers

	if s.cfg.PersistDedup && s.store != nil {
		s.persistCh = make(chan dedupWrite, 1024)
	}

	// Delivery is best-effort: a failing loop restarts instead of taking
	// the whole app down.
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		rtsup.WithCancelOnError(false),
	)
	s.sup = sup
	q, pch, st := s.queue, s.persistCh, s.store
	s.mu.Unlock()

	if pch != nil {
		sup.GoRestart("dedup.persist", func(c context.Context) error {
			s.persistMarks(c, pch, st)
			return s.loopExit(c, "persist loop")
		}, rtsup.WithPublishFirstError(true))
	}
	for i := range workers {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.consume(c, q)
			return s.loopExit(c, "worker")
		}, rtsup.WithPublishFirstError(true))
	}
}

// loopExit classifies a loop return: clean during shutdown, an error
// otherwise so the supervisor restarts it.
func (s *Service) loopExit(c context.Context, what string) error {
	s.mu.Lock()
	stopping := s.stopDone != nil
	s.mu.Unlock()
	if stopping {
		return context.Canceled
	}
	if c.Err() != nil {
		return c.Err()
	}
	return fmt.Errorf("notifier %s exited unexpectedly", what)
}

// Stop blocks new intake and drains the queue until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	pch := s.persistCh
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	// Teardown runs on its own goroutine so a caller that times out does
	// not leave half-flipped state behind.
	go func() {
		defer close(done)
		// Wait out in-flight enqueues, then close the queue so the
		// workers drain and exit.
		s.enqueueWG.Wait()
		if pch != nil {
			closeQuiet(pch)
		}
		closeQuiet(q)
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue, s.persistCh, s.sup = nil, nil, nil
		s.stopDone = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Give up on draining; cancel the loops outright.
		if sup != nil {
			sup.Cancel()
		}
	}
}

// closeQuiet closes ch, swallowing the panic from a double close.
func closeQuiet[T any](ch chan T) {
	defer func() { _ = recover() }()
	close(ch)
}
