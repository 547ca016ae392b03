package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "agentcron/pkg/logx"
)

func TestSQLiteStoreAppendAndQuery(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "runs.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	for i, r := range []Run{
		{At: at, Workspace: "alpha", JobID: "job00001", JobName: "pulse", Status: "ok", TookMS: 40},
		{At: at.Add(time.Minute), Workspace: "alpha", JobID: "job00002", Status: "error", Error: "timeout", TookMS: 120000},
		{At: at.Add(2 * time.Minute), Workspace: "alpha", JobID: "job00001", Status: "ok", TookMS: 40},
	} {
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("runs = %d, want 3", len(all))
	}
	// Oldest first, matching the file driver.
	if !all[0].At.Equal(at) || all[0].JobName != "pulse" {
		t.Fatalf("first run = %#v", all[0])
	}

	byJob, err := st.RecentRuns(ctx, "job00002", 10)
	if err != nil {
		t.Fatalf("recent by job: %v", err)
	}
	if len(byJob) != 1 || byJob[0].Error != "timeout" {
		t.Fatalf("filtered = %#v", byJob)
	}

	limited, err := st.RecentRuns(ctx, "job00001", 1)
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(limited) != 1 || !limited[0].At.Equal(at.Add(2*time.Minute)) {
		t.Fatalf("limit should keep the newest: %#v", limited)
	}
}

func TestSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("sqlite without path should error")
	}
}
