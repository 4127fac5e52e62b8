package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestFirstRunScheduleNext(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := &firstRunSchedule{base: cron.Every(time.Minute), first: now.Add(10 * time.Second)}

	if got := sched.Next(now); !got.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("first Next = %v, want %v", got, now.Add(10*time.Second))
	}
	// Once the first trigger has passed, the base schedule takes over.
	after := now.Add(11 * time.Second)
	if got := sched.Next(after); !got.Equal(after.Add(time.Minute)) {
		t.Fatalf("Next after first = %v, want %v", got, after.Add(time.Minute))
	}
}

func TestMakeIntervalSchedule(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	early := makeIntervalSchedule(time.Minute, 10*time.Second, now)
	if got := early.Next(now); !got.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("Next with first-run delay = %v, want %v", got, now.Add(10*time.Second))
	}

	plain := makeIntervalSchedule(time.Minute, 0, now)
	if got := plain.Next(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("Next without delay = %v, want %v", got, now.Add(time.Minute))
	}

	// A delay at or beyond the interval would postpone the natural first
	// trigger, so the wrapper is not applied.
	capped := makeIntervalSchedule(time.Minute, 2*time.Minute, now)
	if got := capped.Next(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("Next with oversized delay = %v, want %v", got, now.Add(time.Minute))
	}
}
