// Package notify is the boundary to the realtime fan-out layer. Delivery is
// best-effort by design: a finalize call never fails because listeners could
// not be reached.
package notify

import (
	"context"
	"time"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
)

// MessageEvent announces a newly created message with an attachment.
type MessageEvent struct {
	ConversationID string
	MessageID      string
	FileID         string
	SenderID       string
	MessageType    string
}

// Notifier delivers message events to the realtime layer.
type Notifier interface {
	MessageCreated(ctx context.Context, event MessageEvent) error
}

// LogNotifier is the in-process implementation: it records the event and
// does nothing else. It stands in wherever a realtime transport is not
// wired up.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) MessageCreated(ctx context.Context, event MessageEvent) error {
	n.logger.Info(ctx, "new message event",
		"conversation_id", event.ConversationID,
		"message_id", event.MessageID,
		"file_id", event.FileID,
	)
	return nil
}

// Dispatch fires the notification on its own goroutine after the
// transactional core of finalize has committed. Failures are logged and
// swallowed; the context handed to the notifier is detached from the
// request so a completed request cannot cancel delivery.
func Dispatch(n Notifier, logger logging.Logger, event MessageEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := n.MessageCreated(ctx, event); err != nil {
			logger.Warn(ctx, "notification delivery failed",
				"conversation_id", event.ConversationID,
				"message_id", event.MessageID,
				"error", err,
			)
		}
	}()
}
