package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "123:abc", "poll_timeout": "10s", "alert_chat_id": -100},
		"logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}},
		"workspaces": {"root": "/srv/agent"},
		"scheduler": {"enabled": true, "tick_interval": "30s", "default_timezone": "Asia/Taipei"},
		"storage": {"driver": "sqlite", "path": "./runs.db", "busy_timeout": "2s"}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.AlertChatID != -100 {
		t.Fatalf("AlertChatID = %d", cfg.Telegram.AlertChatID)
	}
	if cfg.Workspaces.Root != "/srv/agent" {
		t.Fatalf("Root = %q", cfg.Workspaces.Root)
	}
	if cfg.Scheduler.DefaultTimezone != "Asia/Taipei" {
		t.Fatalf("DefaultTimezone = %q", cfg.Scheduler.DefaultTimezone)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("Storage = %#v", cfg.Storage)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: 10s
logging:
  level: DEBUG
  console: true
  file:
    enabled: true
    path: ./agentcron.log
workspaces:
  root: /srv/agent
scheduler:
  enabled: true
  tick_interval: 1m
  max_consecutive_errors: 3
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.File.Enabled {
		t.Fatalf("Logging = %#v", cfg.Logging)
	}
	if cfg.Scheduler.MaxConsecutiveErrors != 3 {
		t.Fatalf("MaxConsecutiveErrors = %d", cfg.Scheduler.MaxConsecutiveErrors)
	}
	if cfg.Storage != nil {
		t.Fatal("omitted storage section should stay nil")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  pol_timeout: 10s
logging:
  level: INFO
workspaces:
  root: /srv/agent
scheduler:
  enabled: true
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("typoed key should be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","poll_timeout":"1s"},"logging":{"level":"INFO","console":true,"file":{"enabled":false,"path":""}},"workspaces":{"root":"/x"},"scheduler":{"enabled":true}}{"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing JSON should be rejected")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	sub := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-sub:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}

	// A full buffer drops the stale entry, not the newest.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	select {
	case got := <-sub:
		if got != second {
			t.Fatal("expected the newest config")
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(&Config{})
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", "90s")
	if err != nil || d != 90*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero, got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("invalid duration should error")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration should error")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default not applied: (%v, %v)", d, err)
	}
}
