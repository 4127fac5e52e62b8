package adapter

import (
	tele "gopkg.in/telebot.v4"

	kit "purrbot/internal/transport"
)

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	forward := func(c tele.Context) error {
		if m := c.Message(); m != nil {
			a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: messageFrom(m)})
		}
		return nil
	}
	a.bot.Handle(tele.OnText, forward)
	// Photos arrive as a separate update type; the caption travels with them.
	a.bot.Handle(tele.OnPhoto, forward)

	a.bot.Handle(tele.OnCallback, a.onCallback)
}

func (a *Adapter) onCallback(c tele.Context) error {
	cb, m := c.Callback(), c.Message()
	if cb == nil || m == nil {
		return nil
	}
	a.sendUpdate(kit.Update{
		Kind: kit.UpdateCallback,
		Callback: &kit.Callback{
			ID:        cb.ID,
			ChatID:    m.Chat.ID,
			ThreadID:  threadIDFromMsg(m),
			FromID:    cb.Sender.ID,
			FromName:  cb.Sender.FirstName,
			MessageID: m.ID,
			Data:      cb.Data,
		},
	})
	return nil
}

// messageFrom maps a telebot message onto the transport-neutral shape.
// telebot already keeps only the largest photo size, so PhotoFileID can be
// stored and re-sent as-is.
func messageFrom(m *tele.Message) *kit.Message {
	msg := &kit.Message{
		ID:       m.ID,
		ChatID:   m.Chat.ID,
		ThreadID: threadIDFromMsg(m),
		Text:     m.Text,
		IsGroup:  m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
	}
	if m.Sender != nil {
		msg.FromID = m.Sender.ID
		msg.FromUsername = m.Sender.Username
		msg.FromName = m.Sender.FirstName
	}
	if m.Photo != nil {
		msg.PhotoFileID = m.Photo.FileID
		msg.PhotoCaption = m.Caption
	}
	return msg
}

func threadIDFromMsg(m *tele.Message) int {
	return m.ThreadID
}
