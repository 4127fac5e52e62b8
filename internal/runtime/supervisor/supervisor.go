package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "purrbot/pkg/logx"
)

const (
	defaultRestartFloor = 250 * time.Millisecond
	defaultRestartCeil  = 30 * time.Second

	// A run that survived this long resets the backoff ladder.
	restartResetAfter = 30 * time.Second
)

// Supervisor runs named goroutines tied to one shared context. It
// recovers panics, records the first failure, optionally cancels the
// whole group on that failure, and supports deadline-aware waiting.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	errOnce  sync.Once
	firstErr atomic.Value // error

	doneOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

type SupervisorOption func(*Supervisor)

func WithLogger(log logx.Logger) SupervisorOption {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context as soon as any
// goroutine returns a non-nil error or panics.
func WithCancelOnError(enabled bool) SupervisorOption {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...SupervisorOption) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	s := &Supervisor{done: make(chan struct{})}
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context is the lifetime handed to every supervised goroutine.
func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines
// to exit.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first recorded failure, if any.
func (s *Supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

// Go starts fn under the supervisor. A panic or a non-Canceled error is
// recorded as the group failure.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go s.runGuarded(name, fn)
}

// Go0 is Go for functions without an error result.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	wrapped := func(ctx context.Context) error {
		fn(ctx)
		return nil
	}
	s.Go(name, wrapped)
}

func (s *Supervisor) runGuarded(name string, fn func(ctx context.Context) error) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logPanic("goroutine panicked", name, r)
			s.fail(fmt.Errorf("panic in %s: %v", name, r))
		}
	}()

	s.debugLog("goroutine started", name)
	if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.fail(fmt.Errorf("%s: %w", name, err))
	}
	s.debugLog("goroutine stopped", name)
}

// RestartOption configures GoRestart.
type RestartOption func(*restartCfg)

type restartCfg struct {
	minBackoff      time.Duration
	maxBackoff      time.Duration
	stopOnCleanExit bool
	publishFirstErr bool
}

func (c *restartCfg) normalize() {
	if c.minBackoff <= 0 {
		c.minBackoff = defaultRestartFloor
	}
	if c.maxBackoff < c.minBackoff {
		c.maxBackoff = c.minBackoff
	}
}

// WithRestartBackoff sets the exponential backoff window between
// restarts.
func WithRestartBackoff(floor, ceil time.Duration) RestartOption {
	return func(c *restartCfg) {
		if floor > 0 {
			c.minBackoff = floor
		}
		if ceil > 0 {
			c.maxBackoff = ceil
		}
	}
}

// WithPublishFirstError records the first observed error or panic as
// the supervisor Err while the loop keeps restarting. Useful to surface
// a flapping dependency without taking the process down.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(c *restartCfg) { c.publishFirstErr = enabled }
}

// WithStopOnCleanExit stops rather than restarts when fn returns nil.
// Default is true; pollers that must never stop pass false.
func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(c *restartCfg) { c.stopOnCleanExit = enabled }
}

// GoRestart runs fn and restarts it on error or panic with jittered
// exponential backoff until the context is canceled. Meant for
// long-running loops (pollers, watchers, queue consumers) whose
// transient failures should self-heal.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	cfg := restartCfg{
		minBackoff:      defaultRestartFloor,
		maxBackoff:      defaultRestartCeil,
		stopOnCleanExit: true,
	}
	for _, o := range opts {
		o(&cfg)
	}
	cfg.normalize()

	// One supervisor goroutine hosts the whole restart loop.
	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := cfg.minBackoff
		for ctx.Err() == nil {
			startedAt := time.Now()
			err := s.protectedRun(ctx, name, fn)

			// A run that ended because shutdown began is a clean stop,
			// not a failure to restart.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if err == nil {
				if cfg.stopOnCleanExit {
					return
				}
				err = errors.New("exited")
			}

			if cfg.publishFirstErr {
				s.setErr(fmt.Errorf("%s: %w", name, err))
			}
			if time.Since(startedAt) >= restartResetAfter {
				backoff = cfg.minBackoff
			}

			wait := jitter(backoff)
			if !s.log.IsZero() {
				s.log.Warn("goroutine restarting",
					logx.String("name", name), logx.Duration("backoff", wait), logx.Any("err", err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			backoff = min(backoff*2, cfg.maxBackoff)
		}
	})
}

// GoRestart0 is GoRestart for functions without an error result.
func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	if fn == nil {
		return
	}
	wrapped := func(ctx context.Context) error {
		fn(ctx)
		return nil
	}
	s.GoRestart(name, wrapped, opts...)
}

// protectedRun invokes one iteration of a restart loop, converting a
// panic into an error.
func (s *Supervisor) protectedRun(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic("goroutine panicked (restart)", name, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Stop cancels the group and waits for it to drain.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every goroutine has exited or ctx expires.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// jitter adds up to 20% random slack so restarting loops don't sync up.
func jitter(d time.Duration) time.Duration {
	span := int64(d) / 5
	if span <= 0 {
		return d
	}
	return d + time.Duration(time.Now().UnixNano()%(span+1))
}

func (s *Supervisor) fail(err error) {
	s.setErr(err)
	if s.cancelOnErr {
		s.cancel()
	}
}

func (s *Supervisor) setErr(err error) {
	if err != nil {
		s.errOnce.Do(func() { s.firstErr.Store(err) })
	}
}

func (s *Supervisor) debugLog(msg, name string) {
	if !s.log.IsZero() {
		s.log.Debug(msg, logx.String("name", name))
	}
}

func (s *Supervisor) logPanic(msg, name string, r any) {
	if !s.log.IsZero() {
		s.log.Error(msg,
			logx.String("name", name), logx.Any("panic", r),
			logx.Stack(string(debug.Stack())))
	}
}
