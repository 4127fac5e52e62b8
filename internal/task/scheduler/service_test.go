package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"purrbot/internal/eventbus"
	logx "purrbot/pkg/logx"
)

func TestAddIntervalUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)

	job := func(ctx context.Context) error { return nil }
	if _, err := s.AddInterval("tick", time.Minute, 0, job); err != nil {
		t.Fatalf("AddInterval error: %v", err)
	}
	if _, err := s.AddInterval("tick", 2*time.Minute, 0, job); err != nil {
		t.Fatalf("AddInterval (upsert) error: %v", err)
	}

	s.mu.Lock()
	defs := len(s.defs)
	spec := s.defs[0].spec
	s.mu.Unlock()
	if defs != 1 {
		t.Fatalf("defs = %d, want 1", defs)
	}
	if spec != "@every 2m0s" {
		t.Fatalf("spec = %q, want %q", spec, "@every 2m0s")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)

	if s.Remove("missing") {
		t.Fatal("Remove reported true for unknown name")
	}
	if _, err := s.AddCron("daily", "0 8 * * *", 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("AddCron error: %v", err)
	}
	if !s.Remove("daily") {
		t.Fatal("Remove = false, want true")
	}
	if s.Remove("daily") {
		t.Fatal("second Remove = true, want false")
	}
}

func TestAddScheduleRejectsEmptyName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	if _, err := s.AddInterval("  ", time.Minute, 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRunTaskOverlapSkip(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	state := &RunState{}
	if !state.tryAcquire() {
		t.Fatal("first acquire should succeed")
	}

	ran := false
	job := func(ctx context.Context) error {
		ran = true
		return nil
	}
	s.runTask(context.Background(), "busy", 0, TaskOptions{Overlap: OverlapSkipIfRunning}, state, job)
	if ran {
		t.Fatal("job ran while a previous run was in flight")
	}

	state.release()
	s.runTask(context.Background(), "busy", 0, TaskOptions{Overlap: OverlapSkipIfRunning}, state, job)
	if !ran {
		t.Fatal("job did not run after the previous run returned")
	}
}

func TestRunTaskRecoversPanic(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{Enabled: true}, logx.Nop(), bus)
	s.runTask(context.Background(), "boom", 0, TaskOptions{}, &RunState{}, func(ctx context.Context) error {
		panic("kaboom")
	})

	if !hasEvent(ch, "task.failed") {
		t.Fatal("expected task.failed event after panic")
	}
}

func TestRunTaskTimeout(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)

	var got error
	s.runTask(context.Background(), "slow", 10*time.Millisecond, TaskOptions{}, &RunState{}, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			got = ctx.Err()
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("job ctx error = %v, want deadline exceeded", got)
	}
}

func TestRunTaskPublishesLifecycleEvents(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{Enabled: true}, logx.Nop(), bus)
	s.runTask(context.Background(), "ok", 0, TaskOptions{}, &RunState{}, func(ctx context.Context) error { return nil })
	if !hasEvent(ch, "task.finished") {
		t.Fatal("expected task.finished event")
	}

	s.runTask(context.Background(), "bad", 0, TaskOptions{}, &RunState{}, func(ctx context.Context) error {
		return errors.New("nope")
	})
	if !hasEvent(ch, "task.failed") {
		t.Fatal("expected task.failed event")
	}
}

func TestRunTaskSkipsWhenStopping(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	s.runTask(ctx, "late", 0, TaskOptions{}, &RunState{}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("job ran after shutdown")
	}
}

// hasEvent drains already-published events looking for the given type.
// Publish happens synchronously before runTask returns, so no waiting needed.
func hasEvent(ch <-chan eventbus.Event, typ string) bool {
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return true
			}
		default:
			return false
		}
	}
}
