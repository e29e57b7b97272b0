// Package notify delivers text and file attachments to guild channels.
// Delivery is best effort: callers log failures and move on.
package notify

import (
	"context"
	"log/slog"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one outbound notification.
type Message struct {
	GuildID     int64
	ChannelID   int64
	Text        string
	Attachments []Attachment
}

// Size returns the total attachment size in bytes.
func (m Message) Size() int {
	n := 0
	for _, a := range m.Attachments {
		n += len(a.Data)
	}
	return n
}

// Notifier delivers messages to a channel.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of delivering them. It is
// used when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Deliver(_ context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	slog.Info("notification", "guild", msg.GuildID, "channel", msg.ChannelID, "text", msg.Text, "attachments", names)
	return nil
}

// Best delivers msg and logs a failure instead of returning it.
func Best(ctx context.Context, n Notifier, msg Message) bool {
	if n == nil {
		return false
	}
	if err := n.Deliver(ctx, msg); err != nil {
		slog.Warn("notification delivery failed", "guild", msg.GuildID, "channel", msg.ChannelID, "error", err)
		return false
	}
	return true
}
