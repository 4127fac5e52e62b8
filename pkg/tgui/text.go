package tgui

import "unicode/utf8"

// TruncRunes caps s at n runes, marking any cut with an ellipsis. Rune
// counting keeps accented characters and emoji intact where byte
// slicing would split them.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n]) + "…"
}
