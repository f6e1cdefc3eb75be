package conversations

import (
	"context"
	"time"
)

type Repository interface {
	// IsParticipant reports whether userID belongs to the conversation.
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	// Participants lists the userIDs of every conversation member.
	Participants(ctx context.Context, conversationID string) ([]string, error)

	// SetLastMessage moves the conversation's last-message pointer and
	// activity timestamp.
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
}
