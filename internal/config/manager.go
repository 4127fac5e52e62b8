package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	logx "purrbot/pkg/logx"
)

// ConfigManager owns the loaded configuration: it parses the file on
// demand, hands out the committed snapshot, and fans reloads out to
// subscribers.
type ConfigManager struct {
	path string

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64 // fingerprint of the committed snapshot, used to skip no-op reloads

	// subsMu guards subs so publish never sends on a channel that a
	// concurrent Unsubscribe is closing.
	subsMu sync.Mutex
	subs   []chan *Config

	log      logx.Logger
	validate func(ctx context.Context, cfg *Config) error
}

// NewConfigManager tracks the config file at path. Nothing is read
// until Load or Parse.
func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path}
}

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a hook that Watch runs against every candidate
// config before committing it. A rejected config leaves the current
// snapshot in place.
func (m *ConfigManager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validate = fn
}

// Parse reads and strictly decodes the config file without touching the
// committed snapshot.
func (m *ConfigManager) Parse() (*Config, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(m.path, raw)
	if err != nil {
		return nil, err
	}
	return decodeStrict(jb)
}

// decodeStrict decodes exactly one JSON document. Unknown keys and
// trailing data are errors.
func decodeStrict(jb []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()

	cfg := new(Config)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	switch err := dec.Decode(&struct{}{}); err {
	case io.EOF:
		return cfg, nil
	case nil:
		return nil, fmt.Errorf("invalid config: trailing data")
	default:
		return nil, err
	}
}

// Load parses the file and commits the result as the current snapshot.
func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err == nil {
		m.Commit(cfg)
	}
	return cfg, err
}

// Commit replaces the committed snapshot without notifying subscribers.
func (m *ConfigManager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// committed reports whether cfg matches the snapshot already in place.
func (m *ConfigManager) committed(cfg *Config) bool {
	h := hashConfig(cfg)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return h != 0 && h == m.lastHash
}

// Subscribe registers a reload channel. The channel stays open until it
// is passed back to Unsubscribe.
func (m *ConfigManager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *ConfigManager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	i := slices.Index(m.subs, ch)
	if i < 0 {
		return
	}
	// swap-remove; subscriber order carries no meaning
	last := len(m.subs) - 1
	m.subs[i] = m.subs[last]
	m.subs[last] = nil
	m.subs = m.subs[:last]
	close(ch)
}

// publish delivers cfg to every subscriber. When a buffer is full the
// oldest queued snapshot is shed so the newest one wins. subsMu stays
// held for the whole walk so no channel closes mid-send.
func (m *ConfigManager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		select {
		case ch <- cfg:
			continue
		default:
		}
		// full buffer: shed one stale snapshot, then retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			if !m.log.IsZero() {
				m.log.Debug("config update dropped (subscriber slow)",
					logx.Int("queue_len", len(ch)),
					logx.Int("queue_cap", cap(ch)))
			}
		}
	}
}
