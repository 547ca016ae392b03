package notifier

import (
	"time"

	"agentcron/internal/transport"
)

// Config controls operator alert delivery.
type Config struct {
	Enabled    bool
	Target     transport.ChatTarget
	RatePerSec int
	Burst      int
}

type HistoryItem struct {
	At   time.Time
	Text string
}
