package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpecKind says how a schedule string drives the cron instance.
type SpecKind int

const (
	// SpecCron goes through the cron expression parser.
	SpecCron SpecKind = iota
	// SpecInterval repeats on a fixed duration.
	SpecInterval
)

// ParsedSpec is the normalized form of a schedule string.
//
// Accepted inputs:
//   - cron expressions, including descriptors: "*/5 * * * *", "0 8 * * *", "@hourly"
//   - Go durations: "55m", "2h30m"
//   - HH:MM intervals: "00:50" repeats every 50 minutes, "02:30" every 2.5 hours
//
// A "cron:", "interval:" or "every:" prefix skips the guessing and forces
// one interpretation.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string        // set when Kind is SpecCron
	Every  time.Duration // set when Kind is SpecInterval
	Source string        // "cron" | "duration" | "hhmm"
}

var hhmmPattern = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule normalizes a schedule string into a cron expression or an
// interval. The format is guessed unless the string carries an explicit
// prefix.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	if expr, ok := cutPrefixFold(s, "cron:"); ok {
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	}
	for _, p := range []string{"interval:", "every:"} {
		if v, ok := cutPrefixFold(s, p); ok {
			return intervalValue(v)
		}
	}

	// Embedded whitespace or a leading @ can only be cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	if hhmmPattern.MatchString(s) {
		d, err := hhmmDuration(s)
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return intervalSpec(d, "duration")
	}

	return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '02:30', or duration like '55m')", raw)
}

// cutPrefixFold strips a case-insensitive prefix and trims the remainder.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}

// intervalValue parses the value after an interval: or every: prefix.
func intervalValue(v string) (ParsedSpec, error) {
	switch {
	case v == "":
		return ParsedSpec{}, fmt.Errorf("interval required")
	case hhmmPattern.MatchString(v):
		d, err := hhmmDuration(v)
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	return intervalSpec(d, "duration")
}

func intervalSpec(d time.Duration, src string) (ParsedSpec, error) {
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: src}, nil
}

// hhmmDuration converts "HH:MM" into a duration. Hours may run past 24 (up
// to three digits); minutes must stay under 60.
func hhmmDuration(v string) (time.Duration, error) {
	m := hhmmPattern.FindStringSubmatch(v)
	if m == nil {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	switch {
	case mm > 59:
		return 0, fmt.Errorf("invalid minutes in %q", v)
	case hh == 0 && mm == 0:
		return 0, fmt.Errorf("interval must be > 0")
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
