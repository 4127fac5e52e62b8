// Package transport defines the chat-platform wire types shared by the
// router, the notifier and the concrete adapters. Everything here is
// platform-neutral; Telegram specifics live under transport/telegram.
package transport

// UpdateKind discriminates the one-of fields in Update.
type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is one inbound event from the chat platform.
type Update struct {
	Kind     UpdateKind
	Message  *Message  // set when Kind is UpdateMessage
	Callback *Callback // set when Kind is UpdateCallback
}

type Message struct {
	ID       int
	ChatID   int64
	ThreadID int // forum topic the message arrived in, 0 outside topics
	IsGroup  bool

	FromID       int64
	FromUsername string
	FromName     string

	Text string

	// Photo attachment, largest available size. Captions arrive separately
	// from Text on Telegram.
	PhotoFileID  string
	PhotoCaption string
}

func (m *Message) HasPhoto() bool { return m != nil && m.PhotoFileID != "" }

// Callback is an inline-button press. Data carries the routing payload
// the bot attached when building the keyboard.
type Callback struct {
	ID        string
	FromID    int64
	FromName  string
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

// ChatTarget addresses a destination for outbound sends.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef identifies an already-sent message, e.g. for edits.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}
