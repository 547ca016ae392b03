package sched

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions (minute, hour, day of
// month, month, day of week). Day-of-month and day-of-week restrictions are
// OR'd, per common cron convention.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Layouts tried for `at` values carrying an explicit offset or zone.
var atZonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Layouts tried for timezone-naive `at` values, interpreted in the default
// timezone. A bare date means midnight.
var atNaiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NextRun computes the next eligible execution instant strictly after now,
// or reports none. It is a pure function of its inputs: malformed
// expressions, unparseable timestamps, elapsed one-shots and unknown kinds
// all degrade to ok=false, and an unresolvable timezone degrades to UTC. The
// tick loop must never fail over a broken schedule.
func NextRun(s Schedule, now time.Time, defaultTZ string) (time.Time, bool) {
	switch v := s.(type) {
	case Every:
		if v.Seconds <= 0 {
			return time.Time{}, false
		}
		return now.Add(time.Duration(v.Seconds) * time.Second), true
	case At:
		return nextAt(v, now, defaultTZ)
	case Cron:
		return nextCron(v, now, defaultTZ)
	}
	return time.Time{}, false
}

func nextAt(v At, now time.Time, defaultTZ string) (time.Time, bool) {
	raw := strings.TrimSpace(v.When)
	if raw == "" {
		return time.Time{}, false
	}

	var at time.Time
	parsed := false
	// An explicit offset wins; the default timezone is ignored entirely.
	for _, layout := range atZonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			at, parsed = t, true
			break
		}
	}
	if !parsed {
		loc := resolveTZ(defaultTZ)
		for _, layout := range atNaiveLayouts {
			if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
				at, parsed = t, true
				break
			}
		}
	}
	if !parsed {
		return time.Time{}, false
	}
	// One-shots never re-fire.
	if !at.After(now) {
		return time.Time{}, false
	}
	return at, true
}

func nextCron(v Cron, now time.Time, defaultTZ string) (time.Time, bool) {
	expr := strings.TrimSpace(v.Expr)
	if expr == "" {
		return time.Time{}, false
	}
	spec, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	tz := v.TZ
	if tz == "" {
		tz = defaultTZ
	}
	next := spec.Next(now.In(resolveTZ(tz)))
	if next.IsZero() {
		// No occurrence within the evaluator's horizon.
		return time.Time{}, false
	}
	return next, true
}

func resolveTZ(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
