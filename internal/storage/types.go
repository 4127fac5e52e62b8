package storage

import (
	"errors"
	"time"
)

// ErrDisabled is returned by every operation on a nil or unopened store.
var ErrDisabled = errors.New("storage disabled")

// Config selects the backing database. Driver "sqlite" (or "sqlite3")
// opens the file at Path; empty or "none" disables persistence and the
// bot runs memory-only.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}
