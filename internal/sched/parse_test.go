package sched

import (
	"strings"
	"testing"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Schedule
	}{
		{name: "cron", raw: "0 9 * * *", want: Cron{Expr: "0 9 * * *"}},
		{name: "cron step", raw: "*/5 * * * *", want: Cron{Expr: "*/5 * * * *"}},
		{name: "cron ranges", raw: "0 9-17 * * 1-5", want: Cron{Expr: "0 9-17 * * 1-5"}},
		{name: "quoted cron", raw: `"0 9 * * *"`, want: Cron{Expr: "0 9 * * *"}},
		{name: "single quoted cron", raw: "'*/10 * * * *'", want: Cron{Expr: "*/10 * * * *"}},
		{name: "every seconds", raw: "every:30s", want: Every{Seconds: 30}},
		{name: "every minutes", raw: "every:30m", want: Every{Seconds: 1800}},
		{name: "every hours", raw: "every:2h", want: Every{Seconds: 7200}},
		{name: "every days", raw: "every:1d", want: Every{Seconds: 86400}},
		{name: "every uppercase", raw: "EVERY:5M", want: Every{Seconds: 300}},
		{name: "at naive", raw: "at:2026-02-20T14:00", want: At{When: "2026-02-20T14:00"}},
		{name: "at zoned", raw: "at:2026-02-20T14:00:00+08:00", want: At{When: "2026-02-20T14:00:00+08:00"}},
		{name: "at uppercase prefix", raw: "AT:2026-02-20T14:00", want: At{When: "2026-02-20T14:00"}},
		{name: "surrounding space", raw: "  every:1h  ", want: Every{Seconds: 3600}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseSchedule(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseScheduleErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{name: "empty", raw: "", wantMsg: "Empty schedule"},
		{name: "blank", raw: "   ", wantMsg: "Empty schedule"},
		{name: "quoted empty", raw: `""`, wantMsg: "Empty schedule"},
		{name: "zero interval", raw: "every:0m", wantMsg: "Interval must be positive"},
		{name: "garbage", raw: "whenever", wantMsg: "Unrecognized schedule format: whenever"},
		{name: "too few cron fields", raw: "* * * *", wantMsg: "Unrecognized schedule format"},
		{name: "bad unit", raw: "every:5w", wantMsg: "Unrecognized schedule format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.raw)
			if err == nil {
				t.Fatalf("ParseSchedule(%q): expected error", tt.raw)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestFormatSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		s    Schedule
		want string
	}{
		{name: "cron", s: Cron{Expr: "0 9 * * *"}, want: "0 9 * * *"},
		{name: "cron with tz", s: Cron{Expr: "0 9 * * *", TZ: "Asia/Taipei"}, want: "0 9 * * * (Asia/Taipei)"},
		{name: "every exact hours", s: Every{Seconds: 7200}, want: "every 2h"},
		{name: "every exact minutes", s: Every{Seconds: 1800}, want: "every 30m"},
		{name: "every exact days", s: Every{Seconds: 172800}, want: "every 2d"},
		{name: "every ragged", s: Every{Seconds: 90}, want: "every 90s"},
		{name: "at", s: At{When: "2026-02-20T14:00"}, want: "at 2026-02-20T14:00"},
		{name: "nil", s: nil, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSchedule(tt.s); got != tt.want {
				t.Fatalf("FormatSchedule = %q, want %q", got, tt.want)
			}
		})
	}
}
