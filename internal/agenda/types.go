package agenda

import "time"

// Date is a calendar date without a time-of-day component.
//
// The zero value is invalid; use DateOf or one of the parsers.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Time returns the date at midnight in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

func (d Date) Equal(o Date) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// MonthDayLess reports whether a's (month, day) pair orders before b's,
// ignoring years. This is the comparison behind the age decrement rule.
func MonthDayLess(a, b Date) bool {
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}

// User is one chat identity. Timezone is a label only; scheduling always
// compares against the process-local clock. MorningTime is "HH:MM" or the
// literal "disabled".
type User struct {
	ID          int64
	FirstName   string
	Username    string
	Timezone    string
	MorningTime string
	CreatedAt   time.Time
}

// Event is a one-off calendar entry. Time is the storage clock form
// ("HH:MM:SS"); empty means the event runs all day.
type Event struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Date        Date
	Time        string
	CreatedAt   time.Time
}

// AllDay reports whether the event has no time-of-day.
func (e Event) AllDay() bool { return e.Time == "" }

// Birthday recurs yearly on (month, day); the stored year only feeds the
// age computation.
type Birthday struct {
	ID        int64
	UserID    int64
	Name      string
	Date      Date
	CreatedAt time.Time
}

// Photo is an externally stored image (platform file reference) with an
// optional caption, recorded on a given date.
type Photo struct {
	ID        int64
	UserID    int64
	FileID    string
	Caption   string
	Date      Date
	CreatedAt time.Time
}

// The sentinel a user sets to opt out of morning digests.
const MorningDisabled = "disabled"

// Defaults applied when a user row is first created.
const (
	DefaultTimezone    = "Europe/Kiev"
	DefaultMorningTime = "08:00"
)
