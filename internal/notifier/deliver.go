package notifier

import (
	"context"
	"math/rand"
	"time"

	logx "purrbot/pkg/logx"
)

// sendTimeout bounds each adapter call so one hung request cannot stall a
// worker.
const sendTimeout = 10 * time.Second

// consume drains the queue until it closes or ctx ends.
func (s *Service) consume(ctx context.Context, q <-chan pending) {
	if q == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, p)
		}
	}
}

// deliver sends one notification, retrying transient failures with
// jittered exponential backoff.
func (s *Service) deliver(ctx context.Context, p pending) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if s.adapter == nil || p.n.Text == "" {
		return
	}

	attempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err := s.adapter.SendText(callCtx, p.n.Target, p.n.Text, p.n.Options)
		cancel()
		if err == nil {
			s.publish("notifier.sent", p.n, p.key, "")
			return
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))

		if attempt == attempts {
			break
		}
		if !sleepCtx(ctx, backoffDelay(cfg, attempt)) {
			return
		}
	}

	s.log.Warn("notify giving up", logx.Err(lastErr), logx.Int64("chat", p.n.Target.ChatID), logx.Int("attempts", attempts))
	s.publish("notifier.failed", p.n, p.key, lastErr.Error())
}

// backoffDelay computes the wait before the next attempt: exponential from
// RetryBase, capped at RetryMaxDelay, with 0.7x-1.3x jitter. applyLocked
// guarantees both config values are positive.
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d < 0 {
		return 0
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}

// sleepCtx waits d or until ctx is done, reporting whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
