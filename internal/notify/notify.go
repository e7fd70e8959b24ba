// Package notify fans administrator notifications out to every enabled
// channel.
package notify

import (
	"context"
	"log/slog"
)

// Channel delivers one notification over one transport
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Notifier sends administrator notifications over a set of channels
type Notifier struct {
	channels []Channel
	logger   *slog.Logger
}

// New creates a Notifier. Nil channels are skipped, so disabled channels can
// be passed as nil.
func New(logger *slog.Logger, channels ...Channel) *Notifier {
	n := &Notifier{logger: logger}
	for _, c := range channels {
		if c != nil {
			n.channels = append(n.channels, c)
		}
	}
	return n
}

// Channels returns the names of the enabled channels
func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.channels))
	for _, c := range n.channels {
		names = append(names, c.Name())
	}
	return names
}

// NotifyAdmin sends the notification over every channel. A failing channel
// is logged and does not stop the others; nothing is returned to the caller.
func (n *Notifier) NotifyAdmin(ctx context.Context, subject, body string) {
	if len(n.channels) == 0 {
		n.logger.WarnContext(ctx, "No notification channel enabled, dropping notification",
			slog.String("subject", subject),
		)
		return
	}

	for _, c := range n.channels {
		if err := c.Send(ctx, subject, body); err != nil {
			n.logger.ErrorContext(ctx, "Failed to send notification",
				slog.String("channel", c.Name()),
				slog.String("subject", subject),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.InfoContext(ctx, "Sent notification",
			slog.String("channel", c.Name()),
			slog.String("subject", subject),
		)
	}
}
