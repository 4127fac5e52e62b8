package agenda

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Literal formats at the two boundaries. Storage keeps ISO dates and
// seconds-resolution clocks; everything user-facing is DD.MM.YYYY and HH:MM.
const (
	storageDateLayout = "2006-01-02"
	userDateLayout    = "2.1.2006"
)

// ParseStorageDate parses a stored "YYYY-MM-DD" date.
func ParseStorageDate(s string) (Date, error) {
	t, err := time.Parse(storageDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Storage renders the date in its stored "YYYY-MM-DD" form.
func (d Date) Storage() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseUserDate parses a user-entered "DD.MM.YYYY" date. Single-digit day
// and month are tolerated ("5.3.1995").
func ParseUserDate(s string) (Date, error) {
	t, err := time.Parse(userDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// User renders the date in its user-facing "DD.MM.YYYY" form.
func (d Date) User() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

// ParseUserClock validates a user-entered "HH:MM" time and returns it
// zero-padded. Single digits are tolerated ("9:5" becomes "09:05").
func ParseUserClock(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid time %q", s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// ParseStorageClock validates a stored clock value ("HH:MM:SS", with
// "HH:MM" tolerated) and returns the full seconds-resolution form.
func ParseStorageClock(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", fmt.Errorf("invalid stored time %q", s)
	}
	hm, err := ParseUserClock(parts[0] + ":" + parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid stored time %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return "", fmt.Errorf("invalid stored time %q", s)
		}
	}
	return fmt.Sprintf("%s:%02d", hm, sec), nil
}

// ClockShort trims a stored "HH:MM:SS" down to the user-facing "HH:MM".
func ClockShort(s string) string {
	if len(s) == 8 && s[2] == ':' && s[5] == ':' {
		return s[:5]
	}
	return s
}

// ValidMorningTime reports whether s is a zero-padded "HH:MM" or the
// "disabled" sentinel. Only padded values can ever string-match the tick
// clock, so anything else is rejected up front.
func ValidMorningTime(s string) bool {
	if s == MorningDisabled {
		return true
	}
	norm, err := ParseUserClock(s)
	return err == nil && norm == s
}
