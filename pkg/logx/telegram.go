package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	kit "purrbot/internal/transport"
)

// Caps keep a single log line well under the chat message size limit.
const (
	tgMaxLine  = 3500
	tgMaxStack = 900
	tgMaxField = 600
)

type tgNote struct {
	to  kit.ChatTarget
	msg string
}

func (s *Service) telegramWorker(ctx context.Context) {
	if s.sender == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-s.notes:
			_, _ = s.sender.SendText(ctx, note.to, note.msg, &kit.SendOptions{DisablePreview: true})
		}
	}
}

func (s *Service) enqueueTelegramLog(to kit.ChatTarget, msg string) {
	// Never block core logging; a full queue drops the line.
	select {
	case s.notes <- tgNote{to: to, msg: msg}:
	default:
	}
}

// telegramWriter is a zerolog sink that forwards selected lines to the
// configured chat, filtered by min level and rate limited.
type telegramWriter struct{ svc *Service }

func (w *telegramWriter) Write(p []byte) (int, error) {
	// Plain Write carries no level info; treat it as info.
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *telegramWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	// The sink always reports success; chat delivery is best effort.
	n := len(p)

	s := w.svc
	if s == nil || s.sender == nil {
		return n, nil
	}

	s.mu.Lock()
	target := kit.ChatTarget{ChatID: s.chatID, ThreadID: s.threadID}
	lim, floor := s.tgLimit, s.tgMin
	s.mu.Unlock()

	if target.ChatID == 0 || lim == nil || level < floor || !lim.Allow() {
		return n, nil
	}

	if msg := renderTelegramLine(p); msg != "" {
		s.enqueueTelegramLog(target, msg)
	}
	return n, nil
}

var tgMetaKeys = map[string]bool{
	"time":    true,
	"level":   true,
	"message": true,
	"msg":     true,
}

// renderTelegramLine reshapes one zerolog JSON line into a readable chat
// message: "[LEVEL] message" plus one "- key=value" row per field.
func renderTelegramLine(p []byte) string {
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &rec); err != nil {
		// Not JSON; forward raw but capped.
		return clip(strings.TrimSpace(string(p)), tgMaxLine)
	}

	lvl, _ := rec["level"].(string)
	msg, _ := rec["message"].(string)
	if msg == "" {
		msg, _ = rec["msg"].(string)
	}

	var b strings.Builder
	if lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	b.WriteString(msg)

	for k, v := range rec {
		switch {
		case tgMetaKeys[k]:
		case k == "stack":
			b.WriteString("\n- stack=\n")
			b.WriteString(clip(fmt.Sprint(v), tgMaxStack))
		default:
			b.WriteString("\n- ")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(clip(fmt.Sprint(v), tgMaxField))
		}
	}

	return clip(b.String(), tgMaxLine)
}

func clip(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
