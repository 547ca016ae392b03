// Package storage persists dispatch run history so operators can answer
// "when did this job last actually fire, and how did it go" across restarts.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "agentcron/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures run-history storage.
//
// Driver values:
//   - "file": append-only JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Run records one dispatch attempt. Keep it compact and schema-stable.
type Run struct {
	At        time.Time `json:"at"`
	Workspace string    `json:"workspace"`
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Store is the minimal persistence API used by the scheduler wiring.
type Store interface {
	AppendRun(ctx context.Context, r Run) error
	RecentRuns(ctx context.Context, jobID string, limit int) ([]Run, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) if storage is
// disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
