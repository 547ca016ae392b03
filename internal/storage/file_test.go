package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "agentcron/pkg/logx"
)

func openFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "runs.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("empty driver should disable storage, got (%v, %v)", st, err)
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("driver none should disable storage, got (%v, %v)", st, err)
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should error")
	}
}

func TestFileStoreAppendAndQuery(t *testing.T) {
	t.Parallel()
	st := openFileStore(t)
	ctx := context.Background()

	at := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		{At: at, Workspace: "alpha", JobID: "job00001", Status: "ok", TookMS: 40},
		{At: at.Add(time.Minute), Workspace: "alpha", JobID: "job00002", Status: "error", Error: "timeout", TookMS: 120000},
		{At: at.Add(2 * time.Minute), Workspace: "beta", JobID: "job00001", Status: "ok", TookMS: 55},
	}
	for _, r := range runs {
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("runs = %d, want 3", len(all))
	}
	if !all[0].At.Equal(at) {
		t.Fatalf("oldest first, got %v", all[0].At)
	}

	byJob, err := st.RecentRuns(ctx, "job00001", 10)
	if err != nil {
		t.Fatalf("recent by job: %v", err)
	}
	if len(byJob) != 2 {
		t.Fatalf("filtered runs = %d, want 2", len(byJob))
	}
	for _, r := range byJob {
		if r.JobID != "job00001" {
			t.Fatalf("filter leaked: %#v", r)
		}
	}

	limited, err := st.RecentRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited runs = %d, want 2", len(limited))
	}
	// The two most recent survive the limit.
	if limited[1].Workspace != "beta" {
		t.Fatalf("limit should keep the newest entries: %#v", limited)
	}
}

func TestFileStoreSkipsTornLine(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AppendRun(ctx, Run{JobID: "job00001", Status: "ok"}); err != nil {
		t.Fatal(err)
	}
	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"at":"2026-`); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	runs, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 || runs[0].JobID != "job00001" {
		t.Fatalf("torn line should be skipped: %#v", runs)
	}
}

func TestFileStoreClosedAppend(t *testing.T) {
	t.Parallel()
	st := openFileStore(t)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendRun(context.Background(), Run{JobID: "x"}); err == nil {
		t.Fatal("append after close should error")
	}
}
