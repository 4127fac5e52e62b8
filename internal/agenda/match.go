package agenda

import (
	"sort"
	"time"
)

// IsBirthdayToday reports whether the birthday recurs on today's date.
// The rule is month/day equality with the year ignored, so a February 29
// birthday matches only a literal February 29.
func IsBirthdayToday(b Birthday, today Date) bool {
	return b.Date.Month == today.Month && b.Date.Day == today.Day
}

// IsEventOn reports whether the event falls on day (full date equality,
// year included).
func IsEventOn(e Event, day Date) bool {
	return e.Date.Equal(day)
}

// AgeOn computes the age someone born on birth has reached as of asOf:
// the year difference, minus one when asOf's month/day has not yet reached
// the birthday.
func AgeOn(birth, asOf Date) int {
	age := asOf.Year - birth.Year
	if MonthDayLess(asOf, birth) {
		age--
	}
	return age
}

// InMidnightWindow reports whether t falls in [00:00, 00:05) of its day.
// The window is deliberately wider than one tick so jitter cannot skip it.
func InMidnightWindow(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() < 5
}

// NextMidnight returns the first instant of the next day in t's location.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// SortEventsByTime orders events in place by time-of-day ascending with
// all-day items first, ties broken by id for stable output. Stored clock
// strings are zero-padded, so lexicographic order is chronological.
func SortEventsByTime(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.AllDay() != b.AllDay() {
			return a.AllDay()
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

// BirthdaysOn filters the birthdays recurring on day, in input order.
func BirthdaysOn(birthdays []Birthday, day Date) []Birthday {
	var due []Birthday
	for _, b := range birthdays {
		if IsBirthdayToday(b, day) {
			due = append(due, b)
		}
	}
	return due
}

// Upcoming is one birthday occurrence inside a lookahead window.
// Offset is in days from the window start; Age is the age reached on the
// matched date.
type Upcoming struct {
	Birthday Birthday
	On       Date
	Offset   int
	Age      int
}

// UpcomingBirthdays scans days consecutive dates starting at from and
// returns every birthday occurrence in order of occurrence date.
func UpcomingBirthdays(birthdays []Birthday, from Date, days int) []Upcoming {
	var out []Upcoming
	for i := 0; i < days; i++ {
		day := from.AddDays(i)
		for _, b := range birthdays {
			if IsBirthdayToday(b, day) {
				out = append(out, Upcoming{
					Birthday: b,
					On:       day,
					Offset:   i,
					Age:      AgeOn(b.Date, day),
				})
			}
		}
	}
	return out
}

// DisplayClock renders the event's time slot for user-facing lists.
func DisplayClock(e Event) string {
	if e.AllDay() {
		return "All day"
	}
	return ClockShort(e.Time)
}

// EventLine renders the standard one-line list form, "HH:MM - Title" or
// "All day - Title". Escaping is the caller's concern.
func EventLine(e Event) string {
	return DisplayClock(e) + " - " + e.Title
}
