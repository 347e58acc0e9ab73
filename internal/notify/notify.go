// Package notify delivers rendered digests to users.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/matheuskafuri/intelfeed/internal/ratelimit"
)

// DefaultMessagesPerMinute caps outbound messages per chat.
const DefaultMessagesPerMinute = 20

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// WriterSender prints messages to a writer, one block per message.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "[chat %d]\n%s\n\n", chatID, text); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Limited throttles a Sender per chat.
type Limited struct {
	next    Sender
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

// NewLimited wraps next so each chat receives at most the limiter's quota.
func NewLimited(next Sender, limiter *ratelimit.Limiter, log *slog.Logger) *Limited {
	if log == nil {
		log = slog.Default()
	}
	return &Limited{next: next, limiter: limiter, log: log}
}

func (l *Limited) Send(ctx context.Context, chatID int64, text string) error {
	waited, err := l.limiter.Wait(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited > 0 {
		l.log.Debug("message delayed", slog.Int64("chat_id", chatID), slog.Duration("waited", waited))
	}
	return l.next.Send(ctx, chatID, text)
}
