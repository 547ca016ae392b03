// Package telegram is the Telegram-backed dispatch adapter. Each workspace
// store carries the chat/thread binding its jobs dispatch into.
package telegram

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"agentcron/internal/sched"
	"agentcron/internal/transport"
	"agentcron/internal/workspace"
	logx "agentcron/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Adapter{cfg: cfg, log: log, bot: bot}, nil
}

// SendText sends plain text to a chat target. telebot's Send does not take a
// context, so the call runs in a goroutine and the caller's deadline is
// honored by abandoning the wait.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string) error {
	if to.ChatID == 0 {
		return fmt.Errorf("no chat id")
	}
	done := make(chan error, 1)
	go func() {
		chat := &tele.Chat{ID: to.ChatID}
		opts := &tele.SendOptions{
			DisableWebPagePreview: true,
			ThreadID:              to.ThreadID,
		}
		_, err := a.bot.Send(chat, text, opts)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch delivers a job message into the workspace's bound chat/topic. It
// satisfies the scheduler's Dispatcher contract: error means the dispatch
// counts as failed, timeout included.
func (a *Adapter) Dispatch(ctx context.Context, ws workspace.Workspace, meta sched.WorkspaceMeta, message string) error {
	if meta.ChatID == 0 {
		return fmt.Errorf("workspace %s has no chat binding", ws.Name)
	}
	return a.SendText(ctx, transport.ChatTarget{ChatID: meta.ChatID, ThreadID: meta.ThreadID}, message)
}
