// Package transport holds the chat-transport types shared by the dispatch
// adapter and the notifier.
package transport

import "context"

// ChatTarget addresses one chat, optionally a forum topic thread inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// Sender delivers plain text to a chat target, bounded by ctx.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string) error
}
