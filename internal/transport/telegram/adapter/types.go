package adapter

import "time"

// Config controls the Telegram transport.
type Config struct {
	Token string

	// PollTimeout is the long-poll timeout for getUpdates. Default 10s.
	PollTimeout time.Duration
}
