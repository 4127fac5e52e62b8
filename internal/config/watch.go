package config

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "purrbot/pkg/logx"
)

// Edits are debounced because editors often write a file in several
// passes (truncate, write, rename); a single reload per burst is enough.
const (
	reloadDebounce  = 250 * time.Millisecond
	validateTimeout = 5 * time.Second
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// Watch follows the config file until ctx is done, reloading and
// publishing on every content change. The fsnotify watcher is recreated
// with jittered backoff whenever it breaks; some platforms silently stop
// delivering events or close the watcher channels, so the loop assumes
// nothing about watcher lifetime.
func (m *ConfigManager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reloadSoon := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		if !m.log.IsZero() {
			m.log.Debug("config change detected; scheduling reload", logx.String("path", m.path))
		}
		timer = time.AfterFunc(reloadDebounce, func() { m.reload(ctx) })
	}

	retry := newBackoff(watchBackoffMin, watchBackoffMax)
	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			// watch the directory, not the file, so rename-replace saves keep working
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("config watch setup failed", logx.Err(err), logx.String("dir", dir))
			}
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}

		retry.reset()
		if !m.log.IsZero() {
			m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))
		}

		m.drainWatcher(ctx, w, file, reloadSoon)
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		if !m.log.IsZero() {
			m.log.Warn("config watcher stopped; restarting",
				logx.String("dir", dir), logx.String("file", file))
		}
		if !retry.sleep(ctx) {
			return nil
		}
	}
	return nil
}

// drainWatcher consumes a live watcher until it breaks or ctx ends.
func (m *ConfigManager) drainWatcher(ctx context.Context, w *fsnotify.Watcher, file string, reloadSoon func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Compare basenames; event paths may be absolute or relative
			// depending on how the watch was registered.
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				reloadSoon()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			msg := strings.ToLower(err.Error())
			// Overflow means dropped events; reload once rather than trust
			// that every write was seen. Substring matching avoids pinning
			// a specific fsnotify error constant across versions.
			if strings.Contains(msg, "overflow") {
				if !m.log.IsZero() {
					m.log.Warn("config watch overflow; forcing reload", logx.Err(err))
				}
				reloadSoon()
				continue
			}
			if !m.log.IsZero() {
				m.log.Warn("config watch error", logx.Err(err))
			}
			// Some fsnotify backends surface watcher closure as an error.
			if strings.Contains(msg, "closed") {
				return
			}
		}
	}
}

// reload parses, validates, and publishes the file's current content.
// Invalid or unchanged content leaves the committed snapshot untouched.
func (m *ConfigManager) reload(ctx context.Context) {
	cfg, err := m.Parse()
	if err != nil {
		if !m.log.IsZero() {
			m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		}
		return
	}
	if m.committed(cfg) {
		if !m.log.IsZero() {
			m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		}
		return
	}
	if m.validate != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := m.validate(vctx, cfg)
		cancel()
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			}
			return
		}
	}
	m.Commit(cfg)
	m.publish(cfg)
	if !m.log.IsZero() {
		m.log.Debug("config reloaded", logx.String("path", m.path))
	}
}

// backoff spaces watcher restarts with doubling waits plus up to 50%
// jitter, so a persistently broken watch does not spin.
type backoff struct {
	min, max, cur time.Duration
	rng           *rand.Rand
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{
		min: min, max: max, cur: min,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *backoff) reset() { b.cur = b.min }

// sleep waits out the current delay and doubles it for next time. It
// reports false when ctx ended during the wait.
func (b *backoff) sleep(ctx context.Context) bool {
	wait := b.cur + time.Duration(b.rng.Int63n(int64(b.cur/2)+1))
	if b.cur < b.max {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}
