package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Workspaces names the directory scanned for workspace_* subdirectories.
	Workspaces WorkspacesConfig `json:"workspaces"`

	// Scheduler controls the tick loop and job dispatch.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage controls the optional run-history store. Nil means disabled.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`

	// AlertChatID is where operator alerts (auto-disabled jobs etc.) go.
	// 0 disables alerting.
	AlertChatID     int64 `json:"alert_chat_id,omitempty"`
	AlertThreadID   int   `json:"alert_thread_id,omitempty"`
	AlertRatePerSec int   `json:"alert_rate_per_sec,omitempty"`
	AlertBurst      int   `json:"alert_burst,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type WorkspacesConfig struct {
	Root string `json:"root"`
}

// SchedulerConfig controls the scheduler service.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "1m").
// Zero/omitted fields fall back to runtime defaults.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// TickInterval is how often due jobs are checked. Default "30s".
	TickInterval string `json:"tick_interval,omitempty"`

	// DefaultTimezone is an IANA name used for cron schedules that don't
	// carry their own timezone. Default "UTC".
	DefaultTimezone string `json:"default_timezone,omitempty"`

	// DispatchTimeout bounds a single job dispatch. Default "2m".
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`

	// MaxConsecutiveErrors disables a job after this many failures in a row.
	// Default 5.
	MaxConsecutiveErrors int `json:"max_consecutive_errors,omitempty"`

	// CleanupInterval is the cadence of tmp-file retention sweeps. Default "1h".
	CleanupInterval string `json:"cleanup_interval,omitempty"`
	// TmpMaxAge and VoiceMaxAge are retention windows for workspace tmp files.
	// Defaults "720h" (30 days) and "168h" (7 days).
	TmpMaxAge   string `json:"tmp_max_age,omitempty"`
	VoiceMaxAge string `json:"voice_max_age,omitempty"`
}

// StorageConfig controls the run-history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./agentcron.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
