package notifier

import (
	"context"
	"time"

	"purrbot/internal/eventbus"
	kit "purrbot/internal/transport"
)

// intake is the snapshot Notify needs from under the service lock.
type intake struct {
	q       chan pending
	window  time.Duration
	maxN    int
	persist bool
	st      MarkStore
	pch     chan dedupWrite
}

// beginIntake checks that the pipeline accepts work and registers one
// in-flight enqueue. The caller must s.enqueueWG.Done() on success.
func (s *Service) beginIntake() (intake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.cfg.Enabled:
		return intake{}, ErrDisabled
	case !s.accepting || s.queue == nil:
		return intake{}, ErrStopped
	}
	s.enqueueWG.Add(1)
	return intake{
		q:       s.queue,
		window:  s.cfg.DedupWindow,
		maxN:    s.cfg.DedupMaxEntries,
		persist: s.cfg.PersistDedup,
		st:      s.store,
		pch:     s.persistCh,
	}, nil
}

// Notify queues one notification for async delivery and returns quickly:
// nil when it was queued or suppressed as a duplicate, ErrQueueFull when
// the queue has no room.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	in, err := s.beginIntake()
	if err != nil {
		return err
	}
	defer s.enqueueWG.Done()

	// An explicit Once instant activates dedup even without a rolling
	// window; that is how a digest goes out at most once per day.
	key := dedupKey(n)
	if key != "" && (in.window > 0 || !n.Once.IsZero()) {
		if !s.dedupAllow(ctx, key, n.Once, in.window, in.maxN, in.persist, in.st, in.pch) {
			s.publish("notifier.deduped", n, key, "")
			return nil
		}
	}

	s.publish("notifier.queued", n, key, "")
	select {
	case in.q <- pending{n: n, key: key}:
		return nil
	default:
		s.publish("notifier.dropped", n, key, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

// publish emits a notifier lifecycle event when a bus is attached.
func (s *Service) publish(typ string, n kit.Notification, key, errStr string) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: NotificationEvent{
		Channel:  n.Channel,
		ChatID:   n.Target.ChatID,
		ThreadID: n.Target.ThreadID,
		Key:      key,
		At:       now,
		Error:    errStr,
	}})
}
