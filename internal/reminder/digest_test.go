package reminder

import (
	"strings"
	"testing"
	"time"

	"purrbot/internal/agenda"
)

var may15 = agenda.Date{Year: 2024, Month: time.May, Day: 15}

func TestMorningDigestFull(t *testing.T) {
	t.Parallel()
	u := agenda.User{ID: 7, FirstName: "Olena"}
	events := []agenda.Event{
		{Title: "Vet visit", Date: may15},
		{Title: "Standup", Date: may15, Time: "09:30:00"},
	}
	birthdays := []agenda.Birthday{
		{Name: "Taras", Date: agenda.Date{Year: 1994, Month: time.May, Day: 15}},
	}

	msg := morningDigest(u, may15, events, birthdays)
	want := strings.Join([]string{
		"Good morning, Olena! 😸",
		"",
		"📅 Plan for today (15.05.2024):",
		"",
		"🎂 Birthdays:",
		"🎉 Taras - turns 30!",
		"",
		"📋 Events:",
		"• All day - Vet visit",
		"• 09:30 - Standup",
		"",
		"Have a great day! 💕",
	}, "\n")
	if msg.Text != want {
		t.Fatalf("digest text:\n%s\nwant:\n%s", msg.Text, want)
	}
	if msg.Opt == nil || msg.Opt.ReplyMarkupAdapter == nil {
		t.Fatal("digest has no inline keyboard")
	}
}

func TestMorningDigestFreeDay(t *testing.T) {
	t.Parallel()
	msg := morningDigest(agenda.User{FirstName: "Olena"}, may15, nil, nil)
	want := strings.Join([]string{
		"Good morning, Olena! 😸",
		"",
		"📅 Plan for today (15.05.2024):",
		"",
		"Today is a free day! Time to relax 😺",
		"",
		"Have a great day! 💕",
	}, "\n")
	if msg.Text != want {
		t.Fatalf("digest text:\n%s\nwant:\n%s", msg.Text, want)
	}
}

func TestMorningDigestEscapesUserText(t *testing.T) {
	t.Parallel()
	events := []agenda.Event{{Title: "Tea & cake <3", Date: may15, Time: "16:00:00"}}
	msg := morningDigest(agenda.User{FirstName: "O<lena>"}, may15, events, nil)

	if !strings.Contains(msg.Text, "O&lt;lena&gt;") {
		t.Fatalf("name not escaped:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "Tea &amp; cake &lt;3") {
		t.Fatalf("event title not escaped:\n%s", msg.Text)
	}
}

func TestBirthdayAlert(t *testing.T) {
	t.Parallel()
	due := []agenda.Birthday{
		{Name: "Taras", Date: agenda.Date{Year: 1994, Month: time.May, Day: 15}},
	}

	msg := birthdayAlert(due, may15, "https://example.com/gifts")
	want := strings.Join([]string{
		"🎉 BIRTHDAY TODAY! 🎉",
		"",
		"🎂 Taras turns 30!",
		"",
		"Don't forget to send wishes! 😻",
	}, "\n")
	if msg.Text != want {
		t.Fatalf("alert text:\n%s\nwant:\n%s", msg.Text, want)
	}
	if msg.Opt == nil || msg.Opt.ReplyMarkupAdapter == nil {
		t.Fatal("alert has no gift button")
	}

	plain := birthdayAlert(due, may15, "")
	if plain.Opt != nil && plain.Opt.ReplyMarkupAdapter != nil {
		t.Fatal("alert has a gift button without a configured URL")
	}
}
