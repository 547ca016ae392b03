package app

import (
	"testing"
	"time"

	"agentcron/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			Token:       "123:abc",
			PollTimeout: "10s",
		},
		Workspaces: config.WorkspacesConfig{Root: "/srv/agent"},
		Scheduler: config.SchedulerConfig{
			Enabled:              true,
			TickInterval:         "45s",
			DefaultTimezone:      "UTC",
			DispatchTimeout:      "90s",
			MaxConsecutiveErrors: 3,
		},
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	t.Parallel()
	got, err := mapSchedulerConfig(baseConfig())
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got.TickInterval != 45*time.Second {
		t.Fatalf("TickInterval = %v", got.TickInterval)
	}
	if got.DispatchTimeout != 90*time.Second {
		t.Fatalf("DispatchTimeout = %v", got.DispatchTimeout)
	}
	if got.MaxConsecutiveErrors != 3 {
		t.Fatalf("MaxConsecutiveErrors = %d", got.MaxConsecutiveErrors)
	}
	if got.DefaultTZ != "UTC" {
		t.Fatalf("DefaultTZ = %q", got.DefaultTZ)
	}
}

func TestMapSchedulerConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Scheduler.TickInterval = "soon"
	if _, err := mapSchedulerConfig(cfg); err == nil {
		t.Fatal("bad tick_interval should error")
	}

	cfg = baseConfig()
	cfg.Scheduler.DefaultTimezone = "Mars/Olympus"
	if _, err := mapSchedulerConfig(cfg); err == nil {
		t.Fatal("bad default_timezone should error")
	}

	cfg = baseConfig()
	cfg.Scheduler.MaxConsecutiveErrors = -1
	if _, err := mapSchedulerConfig(cfg); err == nil {
		t.Fatal("negative max_consecutive_errors should error")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
		t.Fatalf("nil storage should be disabled, got (%v, %v)", enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "none"}
	if _, enabled, _ := mapStorageConfig(cfg); enabled {
		t.Fatal("driver none should be disabled")
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite", Path: "./runs.db", BusyTimeout: "2s"}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite mapping failed: (%v, %v)", enabled, err)
	}
	if sc.BusyTimeout != 2*time.Second {
		t.Fatalf("BusyTimeout = %v", sc.BusyTimeout)
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("sqlite without path should error")
	}

	cfg.Storage = &config.StorageConfig{Driver: "redis", Path: "x"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("unknown driver should error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := validate(baseConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := baseConfig()
	cfg.Workspaces.Root = " "
	if err := validate(cfg); err == nil {
		t.Fatal("missing workspaces.root should be rejected")
	}

	cfg = baseConfig()
	cfg.Telegram.PollTimeout = "often"
	if err := validate(cfg); err == nil {
		t.Fatal("bad poll_timeout should be rejected")
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	if got := mapNotifierConfig(cfg); got.Enabled {
		t.Fatal("no alert chat means alerting disabled")
	}

	cfg.Telegram.AlertChatID = -100
	cfg.Telegram.AlertThreadID = 9
	got := mapNotifierConfig(cfg)
	if !got.Enabled || got.Target.ChatID != -100 || got.Target.ThreadID != 9 {
		t.Fatalf("mapping = %#v", got)
	}
}
