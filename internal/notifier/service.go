package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"agentcron/internal/transport"
	logx "agentcron/pkg/logx"
)

var (
	ErrDisabled = errors.New("notifier disabled")
	ErrThrottle = errors.New("notifier throttled")
)

const historyCap = 100

// Service sends operator alerts through a transport.Sender.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender transport.Sender

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender transport.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled && s.sender != nil && s.cfg.Target.ChatID != 0
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
}

// Alert sends text to the configured operator chat. Alerts beyond the rate
// limit are dropped. Implements sched.Alerter.
func (s *Service) Alert(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	if !cfg.Enabled || sender == nil || cfg.Target.ChatID == 0 {
		return ErrDisabled
	}
	if !lim.Allow() {
		s.log.Warn("alert dropped by rate limit", logx.String("text", text))
		return ErrThrottle
	}

	msg := "⚠️ " + text
	if err := sender.SendText(ctx, cfg.Target, msg); err != nil {
		s.log.Error("alert send failed", logx.Err(err))
		return err
	}
	s.appendHistory(msg)
	return nil
}

// Snapshot returns recently sent alerts, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()
}
