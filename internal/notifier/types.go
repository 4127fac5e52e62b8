package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline. Zero values pick up
// defaults in Apply, so a partial config block is fine.
type Config struct {
	Enabled bool

	Workers    int
	QueueSize  int
	RatePerSec int

	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// MarkStore persists suppress-until marks so dedup survives restarts.
// *storage.Store satisfies it; a nil store disables persistence.
type MarkStore interface {
	PutMark(ctx context.Context, key string, until time.Time) error
	GetMark(ctx context.Context, key string) (time.Time, bool, error)
}

// NotificationEvent is published on the event bus at each stage of a
// notification's life (queued, sent, deduped, dropped, failed).
type NotificationEvent struct {
	Channel  string    `json:"channel"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
