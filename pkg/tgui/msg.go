package tgui

import (
	"context"
	"strings"

	kit "purrbot/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// Message is a rendered UI payload: text plus send options, built once and
// sent or edited without repeating parse-mode and markup boilerplate.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

// Send delivers the message to the target chat.
func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return ad.SendText(ctx, to, m.Text, m.Opt)
}

// Edit rewrites the message referred to by ref in place, keeping the
// original send options semantics (markup replaced, not merged).
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return ad.EditText(ctx, ref, m.Text, m.Opt)
}

// Builder accumulates lines and renders them as one HTML message.
// Plain text fed through Line and Title is escaped; Telegram sees tags
// only where the builder itself emits them.
type Builder struct {
	rm    *tele.ReplyMarkup
	lines []string
}

// New creates a builder with Telegram defaults (HTML parse mode, link
// previews off).
func New() *Builder {
	return &Builder{}
}

// Inline attaches a keyboard; nil detaches one added earlier.
func (b *Builder) Inline(kb *Inline) *Builder {
	b.rm = nil
	if kb != nil {
		b.rm = kb.Markup()
	}
	return b
}

// Title adds a bold line, optionally prefixed with an emoji.
func (b *Builder) Title(emoji, title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	line := B(t).String()
	if e := strings.TrimSpace(emoji); e != "" {
		line = Esc(e).String() + " " + line
	}
	b.lines = append(b.lines, line)
	return b
}

// Line adds one escaped line; whitespace-only input becomes a blank line.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		s = ""
	}
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// Blank adds a separator line.
func (b *Builder) Blank() *Builder { return b.Line("") }

// Build produces a ready-to-send Message.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.rm != nil {
		opt.ReplyMarkupAdapter = b.rm
	}
	return Message{Text: text, Opt: opt}
}
