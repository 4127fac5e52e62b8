package adapter

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "purrbot/internal/transport"
)

// telegramTextLimit stays under Telegram's 4096-char message cap with room
// for formatting overhead.
const telegramTextLimit = 4000

// sendOptions maps transport-neutral options onto telebot's, attaching the
// inline keyboard only when withMarkup is set.
func sendOptions(opt *kit.SendOptions, threadID int, withMarkup bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              threadID,
	}
	if withMarkup && opt.ReplyMarkupAdapter != nil {
		if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
			so.ReplyMarkup = rm
		}
	}
	return so
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil && ctx.Err() != nil {
			return first, ctx.Err()
		}
		// Only the first message of a split carries the keyboard.
		msg, err := a.bot.Send(chat, chunk, sendOptions(opt, to.ThreadID, i == 0))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// SendPhoto re-sends a stored Telegram photo by file ID with an optional
// caption.
func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, fileID, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if ctx != nil && ctx.Err() != nil {
		return kit.MessageRef{}, ctx.Err()
	}

	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, photo, sendOptions(opt, to.ThreadID, true))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(m, chunks[0], sendOptions(opt, 0, true)); err != nil {
		return err
	}

	// Overflow past the edited message goes out as fresh messages.
	chat := &tele.Chat{ID: ref.ChatID}
	for _, chunk := range chunks[1:] {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := a.bot.Send(chat, chunk, sendOptions(opt, ref.ThreadID, false)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// splitTelegramText splits a long message into chunks that fit Telegram's
// size cap, preferring newline boundaries and, for HTML parse mode, never
// ending a chunk inside a tag.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	html := strings.EqualFold(parseMode, "HTML")
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	for start := 0; start < len(rs); {
		end := chunkEnd(rs, start, limit, html)
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		// Skip the newlines a cut landed on so no chunk starts blank.
		for start = end; start < len(rs) && rs[start] == '\n'; start++ {
		}
	}
	return out
}

// chunkEnd picks where the chunk starting at start should end.
func chunkEnd(rs []rune, start, limit int, html bool) int {
	end := start + limit
	if end >= len(rs) {
		return len(rs)
	}

	// Take the last newline in the window, unless that leaves a tiny chunk.
	for i := end - 1; i > start; i-- {
		if rs[i] != '\n' {
			continue
		}
		if i-start >= limit/3 {
			end = i + 1
		}
		break
	}

	if html {
		lastOpen, lastClose := -1, -1
		for i := start; i < end; i++ {
			switch rs[i] {
			case '<':
				lastOpen = i
			case '>':
				lastClose = i
			}
		}
		// A dangling < means the window ends mid-tag; cut before it.
		if lastOpen > lastClose && lastOpen > start+1 {
			end = lastOpen
		}
	}
	return end
}
