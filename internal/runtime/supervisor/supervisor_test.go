package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorRecordsFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewSupervisor(context.Background())
	s.Go("job", func(ctx context.Context) error { return boom })

	if err := s.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want wrapped %v", err, boom)
	}
}

func TestSupervisorCanceledIsClean(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	s.Go("job", func(ctx context.Context) error { return context.Canceled })

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
}

func TestSupervisorRecordsPanic(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	s.Go("job", func(ctx context.Context) error { panic("kaboom") })

	err := s.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("Wait = %v, want panic error", err)
	}
}

func TestSupervisorCancelOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go("blocker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Go("failer", func(ctx context.Context) error { return boom })

	if err := s.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want wrapped %v", err, boom)
	}
}

func TestSupervisorStopDrains(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	s.Go("blocker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop = %v, want nil", err)
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewSupervisor(context.Background())
	s.GoRestart("job", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestGoRestartRetriesUntilCanceled(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewSupervisor(context.Background())
	s.GoRestart("job", func(ctx context.Context) error {
		if runs.Add(1) >= 3 {
			s.Cancel()
			return ctx.Err()
		}
		return errors.New("flaky")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithPublishFirstError(true))

	err := s.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "flaky") {
		t.Fatalf("Wait = %v, want first flaky error", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}
