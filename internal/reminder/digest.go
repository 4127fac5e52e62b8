package reminder

import (
	"fmt"

	"purrbot/internal/agenda"
	"purrbot/pkg/tgui"
)

// morningDigest renders the daily plan for one user. Events arrive in
// storage order (all-day entries first, then by start time); birthdays are
// already filtered to today.
func morningDigest(u agenda.User, day agenda.Date, events []agenda.Event, birthdays []agenda.Birthday) tgui.Message {
	b := tgui.New()
	b.Line(fmt.Sprintf("Good morning, %s! 😸", u.FirstName))
	b.Blank()
	b.Line(fmt.Sprintf("📅 Plan for today (%s):", day.User()))
	b.Blank()

	if len(birthdays) > 0 {
		b.Line("🎂 Birthdays:")
		for _, bd := range birthdays {
			b.Line(fmt.Sprintf("🎉 %s - turns %d!", bd.Name, agenda.AgeOn(bd.Date, day)))
		}
		if len(events) > 0 {
			b.Blank()
		}
	}
	if len(events) > 0 {
		b.Line("📋 Events:")
		for _, ev := range events {
			b.Line("• " + agenda.EventLine(ev))
		}
	}
	if len(birthdays) == 0 && len(events) == 0 {
		b.Line("Today is a free day! Time to relax 😺")
	}

	b.Blank()
	b.Line("Have a great day! 💕")
	b.Inline(tgui.NewInline().Row(tgui.Btn("📋 Details", tgui.Data("menu", "today", ""))))
	return b.Build()
}

// birthdayAlert renders the just-after-midnight notice for birthdays that
// became current today.
func birthdayAlert(due []agenda.Birthday, day agenda.Date, giftURL string) tgui.Message {
	b := tgui.New()
	b.Line("🎉 BIRTHDAY TODAY! 🎉")
	b.Blank()
	for _, bd := range due {
		b.Line(fmt.Sprintf("🎂 %s turns %d!", bd.Name, agenda.AgeOn(bd.Date, day)))
	}
	b.Blank()
	b.Line("Don't forget to send wishes! 😻")
	if giftURL != "" {
		b.Inline(tgui.NewInline().Row(tgui.URLBtn("🎁 Gift ideas", giftURL)))
	}
	return b.Build()
}
