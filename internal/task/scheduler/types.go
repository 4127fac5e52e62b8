package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"purrbot/internal/eventbus"
	logx "purrbot/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Europe/Kiev"

	// FirstRunDelay sets how soon after Start() interval schedules fire
	// their first trigger, instead of waiting out a full interval.
	// 0 disables the early first run.
	FirstRunDelay time.Duration
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	// runCtx is the base context for job runs; set by Start, canceled by Stop.
	runCtx    context.Context
	runCancel context.CancelFunc

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef
}

type scheduleDef struct {
	id      string
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	opt     TaskOptions
	state   *RunState
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	OverlapSkipIfRunning
)

// TaskOptions tune how a schedule's runs are executed.
type TaskOptions struct {
	Overlap OverlapPolicy
}

// RunState is the overlap gate for one schedule. Under SkipIfRunning a
// trigger is dropped while the previous run has not returned, so a slow
// run cannot stack up behind its own schedule. The zero value is ready.
type RunState struct {
	mu   sync.Mutex
	busy bool
}

func (s *RunState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// TaskEvent is the bus payload for task lifecycle events
// ("task.started", "task.finished", "task.failed", "task.skipped").
type TaskEvent struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}
