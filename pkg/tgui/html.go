package tgui

import "html"

// H is already-escaped HTML, ready for ParseMode="HTML". Anything not
// of this type goes through Esc before reaching a message.
type H string

func (h H) String() string { return string(h) }

// Esc makes plain text safe to embed in an HTML-mode message.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

// B renders bold text.
func B(s string) H { return wrap("b", Esc(s)) }
