package models

import (
	"strings"
	"time"
)

// MessageType classifies a message by its attachment's MIME type.
type MessageType string

const (
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageAudio MessageType = "audio"
	MessageFile  MessageType = "file"
)

// MessageTypeForMime derives the message type from a declared MIME type.
func MessageTypeForMime(mimeType string) MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MessageImage
	case strings.HasPrefix(mimeType, "video/"):
		return MessageVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MessageAudio
	default:
		return MessageFile
	}
}

// Message is the durable chat message referencing an uploaded file.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	FileID         string
	Type           MessageType
	Content        string
	CreatedAt      time.Time
}
