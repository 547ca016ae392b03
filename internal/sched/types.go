package sched

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schedule kind tags as they appear in the store file.
const (
	KindCron  = "cron"
	KindEvery = "every"
	KindAt    = "at"
)

// Schedule describes when a job should run. It is a closed union: exactly
// one of Cron, Every or At. Fields irrelevant to a kind simply do not exist
// on its variant.
type Schedule interface {
	Kind() string
}

// Cron is a 5-field cron expression, optionally pinned to a named timezone.
type Cron struct {
	Expr string
	TZ   string
}

func (Cron) Kind() string { return KindCron }

// Every fires on a fixed interval, anchored at the previous dispatch.
type Every struct {
	Seconds int64
}

func (Every) Kind() string { return KindEvery }

// At is a one-shot ISO-8601 date-time, local or zoned.
type At struct {
	When string
}

func (At) Kind() string { return KindAt }

// unknownSchedule preserves a kind this build does not understand, so a
// store file written by a newer tool survives a load/save cycle here.
type unknownSchedule struct {
	env scheduleJSON
}

func (u unknownSchedule) Kind() string { return u.env.Kind }

// scheduleJSON is the wire envelope: "kind" plus only the populated fields.
type scheduleJSON struct {
	Kind         string `json:"kind"`
	Expr         string `json:"expr,omitempty"`
	TZ           string `json:"tz,omitempty"`
	EverySeconds int64  `json:"every_seconds,omitempty"`
	At           string `json:"at,omitempty"`
}

// ScheduleSpec carries a Schedule through JSON. Job uses it so the tagged
// union round-trips field-for-field.
type ScheduleSpec struct {
	Schedule
}

func (s ScheduleSpec) MarshalJSON() ([]byte, error) {
	switch v := s.Schedule.(type) {
	case Cron:
		return json.Marshal(scheduleJSON{Kind: KindCron, Expr: v.Expr, TZ: v.TZ})
	case Every:
		return json.Marshal(scheduleJSON{Kind: KindEvery, EverySeconds: v.Seconds})
	case At:
		return json.Marshal(scheduleJSON{Kind: KindAt, At: v.When})
	case unknownSchedule:
		return json.Marshal(v.env)
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unsupported schedule kind %q", s.Schedule.Kind())
	}
}

func (s *ScheduleSpec) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		s.Schedule = nil
		return nil
	}
	var env scheduleJSON
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	switch env.Kind {
	case KindCron:
		s.Schedule = Cron{Expr: env.Expr, TZ: env.TZ}
	case KindEvery:
		s.Schedule = Every{Seconds: env.EverySeconds}
	case KindAt:
		s.Schedule = At{When: env.At}
	default:
		s.Schedule = unknownSchedule{env: env}
	}
	return nil
}

// RunState is the mutable, scheduler-owned portion of a job. Instants are
// unix seconds; 0 means "never".
type RunState struct {
	NextRunAt         int64  `json:"next_run_at,omitempty"`
	LastRunAt         int64  `json:"last_run_at,omitempty"`
	LastStatus        string `json:"last_status,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
}

// Job is one scheduled task. Identity, schedule, message and the enabled
// flag belong to the editing side; State belongs to the scheduler.
type Job struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Schedule  ScheduleSpec `json:"schedule"`
	Message   string       `json:"message"`
	Enabled   bool         `json:"enabled"`
	CreatedAt int64        `json:"created_at,omitempty"`
	UpdatedAt int64        `json:"updated_at,omitempty"`
	State     RunState     `json:"state"`
}

// WorkspaceMeta addresses the conversational target all of a workspace's
// jobs dispatch into.
type WorkspaceMeta struct {
	UserID   int64 `json:"user_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`
	ChatID   int64 `json:"chat_id,omitempty"`
}

const storeVersion = 1

// StoreFile is the per-workspace durable document (cron/jobs.json). Job
// order is authoring order and also tick-processing order. External tools
// may rewrite this file between ticks.
type StoreFile struct {
	Version       int           `json:"version"`
	WorkspaceMeta WorkspaceMeta `json:"workspace_meta"`
	Jobs          []Job         `json:"jobs"`
}

// NewStoreFile returns an empty current-version store.
func NewStoreFile() *StoreFile {
	return &StoreFile{Version: storeVersion}
}

// FindJob returns a pointer into Jobs, or nil.
func (f *StoreFile) FindJob(id string) *Job {
	for i := range f.Jobs {
		if f.Jobs[i].ID == id {
			return &f.Jobs[i]
		}
	}
	return nil
}
