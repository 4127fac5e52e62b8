package assistant

import (
	"context"
	"fmt"
	"strings"

	"purrbot/internal/agenda"
	"purrbot/internal/transport/telegram/router"
	logx "purrbot/pkg/logx"
	"purrbot/pkg/tgui"
)

type flowStep int

const (
	stepEventName flowStep = iota
	stepEventDate
	stepEventTime
	stepEventDescription
	stepBirthdayName
	stepBirthdayDate
)

// flow is one guided conversation, keyed by chat. Kept by value: each text
// message works on its own copy and writes the advanced state back.
type flow struct {
	step  flowStep
	event agenda.Event
	birth agenda.Birthday
}

func (s *Service) activeFlow(chatID int64) (flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fl, ok := s.flows[chatID]
	return fl, ok
}

func (s *Service) setFlow(chatID int64, fl flow) {
	s.mu.Lock()
	s.flows[chatID] = fl
	s.mu.Unlock()
}

func (s *Service) clearFlow(chatID int64) {
	s.mu.Lock()
	delete(s.flows, chatID)
	s.mu.Unlock()
}

func cancelKeyboard() *tgui.Inline {
	return tgui.NewInline().Row(tgui.Btn("❌ Cancel", tgui.Data("menu", "cancel", "")))
}

func (s *Service) cbAddEvent(ctx context.Context, req *router.Request, _ string) error {
	s.setFlow(req.Chat.ChatID, flow{step: stepEventName})
	b := tgui.New()
	b.Line("📝 What shall we call the event?")
	b.Blank()
	b.Line("Send me the name.")
	b.Inline(cancelKeyboard())
	return respond(ctx, req, b.Build())
}

func (s *Service) cbAddBirthday(ctx context.Context, req *router.Request, _ string) error {
	s.setFlow(req.Chat.ChatID, flow{step: stepBirthdayName})
	b := tgui.New()
	b.Line("🎂 Whose birthday is it?")
	b.Blank()
	b.Line("Send me the name.")
	b.Inline(cancelKeyboard())
	return respond(ctx, req, b.Build())
}

func (s *Service) cbCancel(ctx context.Context, req *router.Request, _ string) error {
	s.clearFlow(req.Chat.ChatID)
	b := tgui.New()
	b.Line("❌ Canceled 😿")
	b.Inline(tgui.NewInline().Row(backBtn()))
	return respond(ctx, req, b.Build())
}

// continueFlow advances one guided conversation by one answer. Invalid
// input re-prompts without losing the collected fields.
func (s *Service) continueFlow(ctx context.Context, req *router.Request, fl flow, text string) error {
	chatID := req.Chat.ChatID

	switch fl.step {
	case stepEventName:
		if text == "" {
			return s.prompt(ctx, req, "😿 The name cannot be empty, try again.")
		}
		fl.event.Title = text
		fl.step = stepEventDate
		s.setFlow(chatID, fl)
		return s.prompt(ctx, req,
			"📅 When? Send the date as DD.MM.YYYY.",
			`You can also say "today" or "tomorrow".`)

	case stepEventDate:
		day, err := s.parseFlowDate(text)
		if err != nil {
			return s.prompt(ctx, req,
				"😿 I could not read that date.",
				`Try DD.MM.YYYY, "today" or "tomorrow".`)
		}
		fl.event.Date = day
		fl.step = stepEventTime
		s.setFlow(chatID, fl)
		return s.prompt(ctx, req, `⏰ What time? Send HH:MM or say "all day".`)

	case stepEventTime:
		if isAllDay(text) {
			fl.event.Time = ""
		} else {
			hhmm, err := agenda.ParseUserClock(text)
			if err != nil {
				return s.prompt(ctx, req,
					"😿 I could not read that time.",
					`Try HH:MM or say "all day".`)
			}
			fl.event.Time = hhmm + ":00"
		}
		fl.step = stepEventDescription
		s.setFlow(chatID, fl)
		return s.prompt(ctx, req, `📝 Add a note? Send the text or say "skip".`)

	case stepEventDescription:
		if !strings.EqualFold(text, "skip") {
			fl.event.Description = text
		}
		fl.event.UserID = req.FromID
		s.clearFlow(chatID)
		if _, err := s.store.AddEvent(ctx, fl.event); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		s.log.Debug("event saved",
			logx.Int64("user", req.FromID), logx.String("date", fl.event.Date.Storage()))
		b := tgui.New()
		b.Line("✅ Event saved!")
		b.Blank()
		b.Title("📅", fl.event.Title)
		b.Line("🗓 " + fl.event.Date.User())
		b.Line("⏰ " + agenda.DisplayClock(fl.event))
		if fl.event.Description != "" {
			b.Line("📝 " + fl.event.Description)
		}
		b.Inline(tgui.NewInline().Row(backBtn()))
		_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
		return err

	case stepBirthdayName:
		if text == "" {
			return s.prompt(ctx, req, "😿 The name cannot be empty, try again.")
		}
		fl.birth.Name = text
		fl.step = stepBirthdayDate
		s.setFlow(chatID, fl)
		return s.prompt(ctx, req, "📅 When were they born? Send DD.MM.YYYY.")

	case stepBirthdayDate:
		day, err := agenda.ParseUserDate(text)
		if err != nil {
			return s.prompt(ctx, req, "😿 I could not read that date.", "Try DD.MM.YYYY.")
		}
		today := agenda.DateOf(s.now())
		if today.Before(day) {
			return s.prompt(ctx, req, "😿 A birthday in the future? Try again.")
		}
		fl.birth.Date = day
		fl.birth.UserID = req.FromID
		s.clearFlow(chatID)
		if _, err := s.store.AddBirthday(ctx, fl.birth); err != nil {
			return fmt.Errorf("save birthday: %w", err)
		}
		s.log.Debug("birthday saved",
			logx.Int64("user", req.FromID), logx.String("date", day.Storage()))
		b := tgui.New()
		b.Line("✅ Birthday saved!")
		b.Blank()
		b.Title("🎂", fl.birth.Name)
		b.Line("📅 " + day.User())
		b.Line(fmt.Sprintf("🎈 Currently %d years old", agenda.AgeOn(day, today)))
		b.Inline(tgui.NewInline().Row(backBtn()))
		_, err = b.Build().Send(ctx, req.Adapter, req.Chat)
		return err
	}

	// Unknown step: drop the stuck flow.
	s.clearFlow(chatID)
	return nil
}

// prompt sends one cancelable question; each argument is its own paragraph.
func (s *Service) prompt(ctx context.Context, req *router.Request, paragraphs ...string) error {
	b := tgui.New()
	for i, p := range paragraphs {
		if i > 0 {
			b.Blank()
		}
		b.Line(p)
	}
	b.Inline(cancelKeyboard())
	_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func (s *Service) parseFlowDate(text string) (agenda.Date, error) {
	switch strings.ToLower(text) {
	case "today":
		return agenda.DateOf(s.now()), nil
	case "tomorrow":
		return agenda.DateOf(s.now()).AddDays(1), nil
	}
	return agenda.ParseUserDate(text)
}

func isAllDay(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "all day" || t == "allday"
}
