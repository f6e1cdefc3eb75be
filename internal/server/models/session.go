// Package models defines server-side data models: the ephemeral upload
// session tracked in memory, and the durable file/message/conversation
// records persisted in the database.
package models

import "time"

// UploadMode distinguishes the two transfer strategies.
type UploadMode string

const (
	// ModeBuffered routes base64 chunks through the application server,
	// which reassembles them and uploads the object in one shot.
	ModeBuffered UploadMode = "buffered"
	// ModeStreaming hands the client presigned part URLs; ciphertext goes
	// straight to object storage and the server only completes the
	// multipart upload.
	ModeStreaming UploadMode = "streaming"
)

// SessionState is the lifecycle of an upload session. A session is in
// exactly one state; Finalizing guards against concurrent finalize calls
// for the same uploadId.
type SessionState string

const (
	StateCollecting SessionState = "collecting"
	StateFinalizing SessionState = "finalizing"
)

// UploadSession is the ephemeral state of one in-progress transfer. It is
// owned exclusively by the session store and is never persisted: losing
// in-flight sessions on restart is a documented failure mode and clients
// restart the transfer.
type UploadSession struct {
	UploadID       string
	OwnerID        string
	ConversationID string

	FileName    string
	FileType    string
	TotalSize   int64
	TotalChunks int

	Mode  UploadMode
	State SessionState

	// Buffered mode: received chunk payloads keyed by index, plus the
	// encryption metadata declared at init and applied at finalize.
	Chunks   map[int][]byte
	Metadata EncryptionMetadata

	// Streaming mode. StorageUploadID and StorageKey are attached by a
	// second write after the multipart upload is opened, so they may be
	// empty on a session that already exists.
	UploadURLs      []string
	UploadedChunks  map[int]struct{}
	StorageUploadID string
	StorageKey      string

	ThumbnailURL string

	CreatedAt time.Time
}

// ReceivedCount returns how many distinct chunks have been recorded.
func (s *UploadSession) ReceivedCount() int {
	if s.Mode == ModeStreaming {
		return len(s.UploadedChunks)
	}
	return len(s.Chunks)
}

// Progress returns completion as a percentage in [0,100].
func (s *UploadSession) Progress() int {
	if s.TotalChunks == 0 {
		return 0
	}
	p := s.ReceivedCount() * 100 / s.TotalChunks
	if p > 100 {
		p = 100
	}
	return p
}
