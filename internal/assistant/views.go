package assistant

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"purrbot/internal/agenda"
	kit "purrbot/internal/transport"
	"purrbot/internal/transport/telegram/router"
	"purrbot/pkg/tgui"
)

var timezoneOptions = []string{
	"Europe/Kiev",
	"Europe/Warsaw",
	"Europe/Berlin",
	"Europe/London",
	"America/New_York",
}

var morningOptions = []string{"07:00", "08:00", "09:00", "10:00"}

func menuKeyboard() *tgui.Inline {
	return tgui.NewInline().
		Row(tgui.Btn("📅 Today", tgui.Data("menu", "today", "")),
			tgui.Btn("📆 Week", tgui.Data("menu", "week", ""))).
		Row(tgui.Btn("➕ Add event", tgui.Data("menu", "add_event", "")),
			tgui.Btn("🎂 Add birthday", tgui.Data("menu", "add_birthday", ""))).
		Row(tgui.Btn("📋 My events", tgui.Data("menu", "my_events", "")),
			tgui.Btn("🎂 Birthdays", tgui.Data("menu", "birthdays", ""))).
		Row(tgui.Btn("📷 Photos", tgui.Data("menu", "photos", "")),
			tgui.Btn("⚙️ Settings", tgui.Data("menu", "settings", ""))).
		Row(tgui.Btn("❓ Help", tgui.Data("menu", "help", "")))
}

func backBtn() tele.Btn {
	return tgui.Btn("◀️ Back", tgui.Data("menu", "main", ""))
}

func settingsBackBtn() tele.Btn {
	return tgui.Btn("◀️ Back", tgui.Data("menu", "settings", ""))
}

func addEventBtn() tele.Btn {
	return tgui.Btn("➕ Add event", tgui.Data("menu", "add_event", ""))
}

// respond edits the tapped message in place when the request came from an
// inline button, falling back to a fresh send (edits fail on old messages
// and on unchanged content).
func respond(ctx context.Context, req *router.Request, msg tgui.Message) error {
	if cb := req.Update.Callback; cb != nil {
		ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
		if err := msg.Edit(ctx, req.Adapter, ref); err == nil {
			return nil
		}
	}
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (s *Service) cbMenuMain(ctx context.Context, req *router.Request, _ string) error {
	s.clearFlow(req.Chat.ChatID)
	b := tgui.New()
	b.Line("Main menu 😺")
	b.Blank()
	b.Line("Pick an action:")
	b.Inline(menuKeyboard())
	return respond(ctx, req, b.Build())
}

func (s *Service) cbToday(ctx context.Context, req *router.Request, _ string) error {
	msg, err := s.todayView(ctx, req.FromID)
	if err != nil {
		return err
	}
	return respond(ctx, req, msg)
}

func (s *Service) todayView(ctx context.Context, userID int64) (tgui.Message, error) {
	today := agenda.DateOf(s.now())
	events, err := s.store.ListEventsOn(ctx, userID, today)
	if err != nil {
		return tgui.Message{}, fmt.Errorf("list events: %w", err)
	}
	birthdays, err := s.store.ListBirthdays(ctx, userID)
	if err != nil {
		return tgui.Message{}, fmt.Errorf("list birthdays: %w", err)
	}
	due := agenda.BirthdaysOn(birthdays, today)

	b := tgui.New()
	b.Line(fmt.Sprintf("📅 Today, %s (%s)", today.User(), today.Weekday()))
	b.Blank()
	if len(due) > 0 {
		b.Line("🎂 Birthdays:")
		for _, bd := range due {
			b.Line(fmt.Sprintf("🎉 %s turns %d!", bd.Name, agenda.AgeOn(bd.Date, today)))
		}
		if len(events) > 0 {
			b.Blank()
		}
	}
	if len(events) > 0 {
		b.Line("📋 Events:")
		for _, ev := range events {
			b.Line("• " + agenda.EventLine(ev))
			if ev.Description != "" {
				b.Line("  " + ev.Description)
			}
		}
	}
	if len(due) == 0 && len(events) == 0 {
		b.Line("No events today 😿")
		b.Line("Free to purr all day!")
	}
	b.Inline(tgui.NewInline().Row(addEventBtn()).Row(backBtn()))
	return b.Build(), nil
}

func (s *Service) cbWeek(ctx context.Context, req *router.Request, _ string) error {
	today := agenda.DateOf(s.now())
	events, err := s.store.ListEventsBetween(ctx, req.FromID, today, today.AddDays(6))
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	birthdays, err := s.store.ListBirthdays(ctx, req.FromID)
	if err != nil {
		return fmt.Errorf("list birthdays: %w", err)
	}

	b := tgui.New()
	b.Line("📆 Plan for the week:")
	b.Blank()
	next := 0
	for i := 0; i < 7; i++ {
		day := today.AddDays(i)
		b.Title("📅", fmt.Sprintf("%02d.%02d (%s)", day.Day, int(day.Month), day.Weekday()))
		busy := false
		for _, bd := range agenda.BirthdaysOn(birthdays, day) {
			b.Line("🎂 " + bd.Name)
			busy = true
		}
		// Events come back sorted by date then time, so a cursor walk
		// picks up each day's group in order.
		for next < len(events) && events[next].Date.Equal(day) {
			b.Line("• " + agenda.EventLine(events[next]))
			next++
			busy = true
		}
		if !busy {
			b.Line("😴 Free day")
		}
		if i < 6 {
			b.Blank()
		}
	}
	b.Inline(tgui.NewInline().Row(addEventBtn()).Row(backBtn()))
	return respond(ctx, req, b.Build())
}

func (s *Service) cbMyEvents(ctx context.Context, req *router.Request, _ string) error {
	limit := s.config().RecentEvents
	events, err := s.store.ListRecentEvents(ctx, req.FromID, limit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	b := tgui.New()
	b.Line(fmt.Sprintf("📋 Your events (last %d):", limit))
	b.Blank()
	if len(events) == 0 {
		b.Line("No events yet 😿")
		b.Line("Add your first one!")
	}
	for _, ev := range events {
		b.Line(fmt.Sprintf("• %s %s", ev.Date.User(), agenda.EventLine(ev)))
	}
	b.Inline(tgui.NewInline().Row(addEventBtn()).Row(backBtn()))
	return respond(ctx, req, b.Build())
}

func (s *Service) cbBirthdays(ctx context.Context, req *router.Request, _ string) error {
	birthdays, err := s.store.ListBirthdays(ctx, req.FromID)
	if err != nil {
		return fmt.Errorf("list birthdays: %w", err)
	}
	today := agenda.DateOf(s.now())
	upcoming := agenda.UpcomingBirthdays(birthdays, today, s.config().LookaheadDays)

	b := tgui.New()
	b.Line("🎂 Upcoming birthdays:")
	b.Blank()
	if len(upcoming) == 0 {
		b.Line("No birthdays coming up soon 😿")
	}
	for _, up := range upcoming {
		var when string
		switch up.Offset {
		case 0:
			when = "Today! 🎉"
		case 1:
			when = "Tomorrow"
		default:
			when = fmt.Sprintf("%02d.%02d (%s)", up.On.Day, int(up.On.Month), up.On.Weekday())
		}
		b.Line(fmt.Sprintf("🎉 %s - %s (turns %d)", up.Birthday.Name, when, up.Age))
	}
	b.Inline(tgui.NewInline().
		Row(tgui.Btn("🎂 Add birthday", tgui.Data("menu", "add_birthday", ""))).
		Row(backBtn()))
	return respond(ctx, req, b.Build())
}

func (s *Service) cbSettings(ctx context.Context, req *router.Request, _ string) error {
	tz, morning := agenda.DefaultTimezone, agenda.DefaultMorningTime
	if u, ok, err := s.store.GetUser(ctx, req.FromID); err != nil {
		return fmt.Errorf("load user: %w", err)
	} else if ok {
		tz, morning = u.Timezone, u.MorningTime
	}
	if morning == agenda.MorningDisabled {
		morning = "off 🔕"
	}

	b := tgui.New()
	b.Line("⚙️ Settings:")
	b.Blank()
	b.Line("Timezone: " + tz)
	b.Line("Morning reminder: " + morning)
	b.Inline(tgui.NewInline().
		Row(tgui.Btn("🌍 Timezone", tgui.Data("settings", "tz", ""))).
		Row(tgui.Btn("⏰ Morning time", tgui.Data("settings", "morning", ""))).
		Row(backBtn()))
	return respond(ctx, req, b.Build())
}

// cbSettingsTimezone shows the timezone picker when the payload is empty
// and stores the choice otherwise.
func (s *Service) cbSettingsTimezone(ctx context.Context, req *router.Request, payload string) error {
	if payload == "" {
		b := tgui.New()
		b.Line("🌍 Pick your timezone:")
		kb := tgui.NewInline()
		for _, tz := range timezoneOptions {
			kb.Row(tgui.Btn(tz, tgui.Data("settings", "tz", tz)))
		}
		kb.Row(settingsBackBtn())
		b.Inline(kb)
		return respond(ctx, req, b.Build())
	}

	if !knownTimezone(payload) {
		return respond(ctx, req, notice("😿 I do not know that timezone.", settingsBackBtn()))
	}
	if err := s.store.SetUserTimezone(ctx, req.FromID, payload); err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}
	return respond(ctx, req, notice("✅ Timezone set to "+payload, settingsBackBtn()))
}

// cbSettingsMorning shows the digest-time picker when the payload is empty
// and stores the choice otherwise ("disabled" turns the digest off).
func (s *Service) cbSettingsMorning(ctx context.Context, req *router.Request, payload string) error {
	if payload == "" {
		b := tgui.New()
		b.Line("⏰ Pick your morning reminder time:")
		kb := tgui.NewInline().
			Row(morningBtn(morningOptions[0]), morningBtn(morningOptions[1])).
			Row(morningBtn(morningOptions[2]), morningBtn(morningOptions[3])).
			Row(tgui.Btn("🔕 Turn off", tgui.Data("settings", "morning", agenda.MorningDisabled))).
			Row(settingsBackBtn())
		b.Inline(kb)
		return respond(ctx, req, b.Build())
	}

	if !agenda.ValidMorningTime(payload) {
		return respond(ctx, req, notice("😿 That time looks odd, try the buttons.", settingsBackBtn()))
	}
	if err := s.store.SetUserMorningTime(ctx, req.FromID, payload); err != nil {
		return fmt.Errorf("set morning time: %w", err)
	}
	text := "✅ Morning reminder set to " + payload
	if payload == agenda.MorningDisabled {
		text = "🔕 Morning reminders turned off"
	}
	return respond(ctx, req, notice(text, settingsBackBtn()))
}

func morningBtn(hhmm string) tele.Btn {
	return tgui.Btn("⏰ "+hhmm, tgui.Data("settings", "morning", hhmm))
}

func knownTimezone(tz string) bool {
	for _, t := range timezoneOptions {
		if t == tz {
			return true
		}
	}
	return false
}

func (s *Service) cbPhotos(ctx context.Context, req *router.Request, _ string) error {
	b := tgui.New()
	b.Line("📷 Send me a photo and I will keep it! 🐱")
	b.Inline(tgui.NewInline().
		Row(tgui.Btn("📋 My photos", tgui.Data("photos", "list", ""))).
		Row(backBtn()))
	return respond(ctx, req, b.Build())
}

// cbPhotosList re-sends the latest saved photos as fresh messages; a text
// edit cannot carry media.
func (s *Service) cbPhotosList(ctx context.Context, req *router.Request, _ string) error {
	photos, err := s.store.ListRecentPhotos(ctx, req.FromID, s.config().RecentPhotos)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	if len(photos) == 0 {
		b := tgui.New()
		b.Line("No saved photos yet 😿")
		b.Line("Send me one!")
		b.Inline(tgui.NewInline().Row(backBtn()))
		return respond(ctx, req, b.Build())
	}

	for _, p := range photos {
		caption := p.Caption
		if !p.Date.IsZero() {
			caption = "📅 Saved: " + p.Date.User()
			if p.Caption != "" {
				caption += "\n📝 " + p.Caption
			}
		}
		// Telegram caps captions at 1024 characters.
		caption = tgui.TruncRunes(caption, 1024)
		if _, err := req.Adapter.SendPhoto(ctx, req.Chat, p.FileID, caption, nil); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
	}
	b := tgui.New()
	b.Line("Your latest photos! 😺")
	b.Inline(tgui.NewInline().Row(backBtn()))
	_, err = b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func (s *Service) cbHelp(ctx context.Context, req *router.Request, _ string) error {
	return respond(ctx, req, helpView())
}

func helpView() tgui.Message {
	b := tgui.New()
	b.Line("❓ Here is what I can do:")
	b.Blank()
	b.Title("📅", "Events:")
	b.Line("• Add events with a date and time")
	b.Line("• Show the plan for today or the week")
	b.Blank()
	b.Title("🎂", "Birthdays:")
	b.Line("• Keep track of birthdays")
	b.Line("• Send wishes right after midnight")
	b.Line("• Count the years for you")
	b.Blank()
	b.Title("📷", "Photos:")
	b.Line("• Send me a photo and I keep it")
	b.Line("• Captions welcome")
	b.Blank()
	b.Title("⏰", "Reminders:")
	b.Line("• Morning digest at your chosen time")
	b.Line("• Change the time in settings")
	b.Blank()
	b.Line("Just press the buttons and I do the rest 😺")
	b.Inline(tgui.NewInline().Row(backBtn()))
	return b.Build()
}

func notice(text string, btn tele.Btn) tgui.Message {
	b := tgui.New()
	b.Line(text)
	b.Inline(tgui.NewInline().Row(btn))
	return b.Build()
}
