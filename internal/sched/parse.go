package sched

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Supported schedule strings:
//   - "0 9 * * *" or "*/5 * * * *" — 5-field cron expression (may be quoted)
//   - every:30m, every:2h, every:1d — fixed interval
//   - at:2026-02-20T14:00           — one-shot ISO-8601
var (
	everyRe = regexp.MustCompile(`(?i)^every:(\d+)([smhd])$`)
	atRe    = regexp.MustCompile(`(?i)^at:(.+)$`)
	cronRe  = regexp.MustCompile(`^[*/\d,\-]+(?:\s+[*/\d,\-]+){4}$`)
)

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// ParseSchedule parses a user-authored schedule string. Failure is reported
// as an error value so an interactive editor can show it inline; nothing in
// here validates cron or date-time contents — that is deferred to NextRun.
func ParseSchedule(text string) (Schedule, error) {
	s := stripQuotes(strings.TrimSpace(text))
	if s == "" {
		return nil, errors.New("Empty schedule")
	}

	if m := everyRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n <= 0 {
			return nil, errors.New("Interval must be positive")
		}
		return Every{Seconds: n * unitSeconds[strings.ToLower(m[2])]}, nil
	}

	if m := atRe.FindStringSubmatch(s); m != nil {
		return At{When: strings.TrimSpace(m[1])}, nil
	}

	if cronRe.MatchString(s) {
		return Cron{Expr: s}, nil
	}

	return nil, fmt.Errorf("Unrecognized schedule format: %s", text)
}

// stripQuotes removes a single matching pair of surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// FormatSchedule renders a schedule for display. Not guaranteed to be
// byte-identical to the string it was parsed from.
func FormatSchedule(s Schedule) string {
	switch v := s.(type) {
	case Cron:
		if v.TZ != "" {
			return v.Expr + " (" + v.TZ + ")"
		}
		return v.Expr
	case Every:
		return formatInterval(v.Seconds)
	case At:
		return "at " + v.When
	case nil:
		return ""
	}
	return fmt.Sprintf("unknown(%s)", s.Kind())
}

// formatInterval prefers the largest unit that divides the interval exactly.
func formatInterval(seconds int64) string {
	switch {
	case seconds >= 86400 && seconds%86400 == 0:
		return fmt.Sprintf("every %dd", seconds/86400)
	case seconds >= 3600 && seconds%3600 == 0:
		return fmt.Sprintf("every %dh", seconds/3600)
	case seconds >= 60 && seconds%60 == 0:
		return fmt.Sprintf("every %dm", seconds/60)
	default:
		return fmt.Sprintf("every %ds", seconds)
	}
}
