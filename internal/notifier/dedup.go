package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	kit "purrbot/internal/transport"
)

// dedupWrite is one suppress-until mark queued for persistence.
type dedupWrite struct {
	key   string
	until time.Time
}

// dedupKey picks the suppression key for a notification. Callers can scope
// suppression themselves with an explicit key (one morning digest per user
// per day); otherwise the key hashes channel, target, and text.
func dedupKey(n kit.Notification) string {
	if n.Key != "" {
		return n.Key
	}
	if n.Channel == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(n.Channel))
	_, _ = h.Write([]byte("|"))
	fmt.Fprintf(h, "%d:%d:%d|", n.Target.ChatID, n.Target.ThreadID, n.Priority)
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

// dedupAllow reports whether a notification with this key may go out now,
// and if so records the new suppress-until instant (Once when set,
// now+window otherwise). The in-memory map answers first; persisted marks
// cover restarts.
func (s *Service) dedupAllow(ctx context.Context, key string, once time.Time, window time.Duration, maxEntries int, persist bool, st MarkStore, pch chan dedupWrite) bool {
	now := time.Now()

	s.dmu.Lock()
	if s.suppress == nil {
		s.suppress = map[string]time.Time{}
	}
	until, ok := s.suppress[key]
	s.dmu.Unlock()
	if ok && now.Before(until) {
		return false
	}

	if persist && st != nil {
		if until, ok := s.lookupMark(ctx, st, key); ok && now.Before(until) {
			s.dmu.Lock()
			s.suppress[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	until = now.Add(window)
	if !once.IsZero() {
		until = once
	}
	s.dmu.Lock()
	s.suppress[key] = until
	s.pruneLocked(now, maxEntries)
	s.dmu.Unlock()

	if persist && st != nil && pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: until}:
		default: // persistence is best-effort
		}
	}
	return true
}

// lookupMark reads a persisted mark with a tight timeout so a slow store
// cannot stall intake.
func (s *Service) lookupMark(ctx context.Context, st MarkStore, key string) (time.Time, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, 25*time.Millisecond)
	defer cancel()
	until, ok, err := st.GetMark(cctx, key)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return until, true
}

// pruneLocked drops expired marks, then evicts the earliest-expiring ones
// until the cap holds. Call with s.dmu held.
func (s *Service) pruneLocked(now time.Time, maxEntries int) {
	for k, until := range s.suppress {
		if !now.Before(until) {
			delete(s.suppress, k)
		}
	}
	for maxEntries > 0 && len(s.suppress) > maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, t := range s.suppress {
			if oldestKey == "" || t.Before(oldest) {
				oldestKey, oldest = k, t
			}
		}
		if oldestKey == "" {
			return
		}
		delete(s.suppress, oldestKey)
	}
}

// persistMarks writes queued marks through to the store until the channel
// closes.
func (s *Service) persistMarks(ctx context.Context, ch <-chan dedupWrite, st MarkStore) {
	if ch == nil || st == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			s.writeMark(ctx, st, w)
		}
	}
}

// writeMark stores one mark with a tight timeout. Failures are dropped;
// the in-memory map still suppresses within this process.
func (s *Service) writeMark(ctx context.Context, st MarkStore, w dedupWrite) {
	cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_ = st.PutMark(cctx, w.key, w.until)
}
