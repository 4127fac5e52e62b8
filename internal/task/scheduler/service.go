package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"purrbot/internal/eventbus"
	logx "purrbot/pkg/logx"
)

// New builds the service without starting cron; Start attaches any
// definitions registered in the meantime.

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	// SecondOptional accepts both 5-field and 6-field (with seconds) specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{cfg: cfg, log: log, bus: bus, parser: parser}
}

// Enabled reports the on/off flag of the active config. Safe to call
// while Apply runs.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. A timezone change while cron is running
// rebuilds it in the new location and re-adds every definition.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tzChanged := strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	if tzChanged && s.c != nil {
		s.restartLocked()
	}
}

// Start begins cron triggering. Jobs registered before Start are attached to
// the new cron instance; jobs registered later attach immediately.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	cur := s.cfg
	s.log.Debug("start requested", logx.Bool("enabled", cur.Enabled), logx.String("tz", strings.TrimSpace(cur.Timezone)))

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.rebuildLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop stops cron triggering and waits for in-flight runs to return.
// Schedule definitions remain registered so they resume on the next Start().
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	// Cancel first so in-flight runs observe ctx.Done() instead of blocking
	// the cron drain below.
	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			s.log.Warn("stop timed out waiting for running jobs", logx.Any("err", ctx.Err()))
		}
	}

	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}
