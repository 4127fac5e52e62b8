package app

import (
	"context"
	"fmt"
	"time"

	logx "purrbot/pkg/logx"
)

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so every supervised loop starts
	// unwinding while the step sequence runs.
	a.sup.Cancel()

	a.stopStep(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.stopStep(ctx, "notifier", 1*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.stopStep(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.stopStep(ctx, "storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	// The dispatcher and config loops unwind with the supervisor once the
	// adapter stops feeding updates.
	a.stopStep(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// stopStep runs one shutdown action with an upper bound so a stuck
// component cannot stall the rest of the sequence. On timeout the step
// is abandoned but still observed, so a late finish shows up in logs
// instead of leaking silently.
func (a *App) stopStep(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	stepCtx, cancel := boundedStopCtx(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn(
			"stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.String("err", stepCtx.Err().Error()),
			logx.Duration("elapsed", time.Since(start)),
		)
		// The step promised to honor stepCtx and did not return in time.
		// Watch for the eventual exit so the leak is visible.
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}

// boundedStopCtx caps the step at limit without ever extending the
// caller's own deadline. A zero or negative remaining budget leaves the
// already-expired parent in place.
func boundedStopCtx(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok {
		rem := time.Until(dl)
		if rem <= 0 {
			return ctx, func() {}
		}
		if rem < limit {
			limit = rem
		}
	}
	return context.WithTimeout(ctx, limit)
}
