package transport

import (
	"context"
	"time"
)

// SendOptions tunes one outbound send. The zero value means plain text
// with link previews on.
type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // platform-specific markup; *telebot.ReplyMarkup for Telegram
}

// Notification is one outbound message queued through the notifier
// rather than sent directly, so it picks up rate limiting, retries and
// duplicate suppression.
type Notification struct {
	Channel  string // delivery channel, currently always "telegram"
	Priority int    // 0 (low) through 10 (high)
	Target   ChatTarget
	Text     string
	Options  *SendOptions

	// Key overrides the content-derived dedup key so callers can scope
	// suppression explicitly (e.g. one digest per user per day). Empty
	// means derive from channel/target/text.
	Key string
	// Once suppresses duplicates of Key until the given instant instead of
	// the configured window. Zero means use the configured window.
	Once time.Time
}

// Adapter is a chat platform connection. Start pushes inbound updates
// into out until Stop or context cancellation.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// SendPhoto reuses a platform file ID rather than uploading bytes.
	SendPhoto(ctx context.Context, to ChatTarget, fileID string, caption string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand is one entry in the platform's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters that can publish the
// command menu to the platform (Telegram's "/" suggestion list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
