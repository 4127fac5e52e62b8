package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline accumulates rows for an inline keyboard. Rows are applied to
// the underlying markup when Markup is called, so finish adding rows
// before attaching the keyboard to a message.
type Inline struct {
	markup *tele.ReplyMarkup
	rows   []tele.Row
}

func NewInline() *Inline {
	return &Inline{markup: &tele.ReplyMarkup{}}
}

// Row adds one row of buttons.
func (k *Inline) Row(btns ...tele.Btn) *Inline {
	k.rows = append(k.rows, k.markup.Row(btns...))
	return k
}

// Markup assembles the rows and returns the telebot markup.
func (k *Inline) Markup() *tele.ReplyMarkup {
	k.markup.Inline(k.rows...)
	return k.markup
}

// Btn is a callback button. The data string goes out raw; build it with
// Data so the router can split it back into namespace, action and payload.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// URLBtn is a link button.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}
