package models

import "time"

// Conversation is the owning chat. Only the fields the finalizer touches
// are modelled here.
type Conversation struct {
	ID             string
	LastMessageID  string
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// User is the uploader's identity record.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}
