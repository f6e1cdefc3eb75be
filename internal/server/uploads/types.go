package uploads

import "github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"

// InitRequest starts a buffered upload.
type InitRequest struct {
	ConversationID string
	FileName       string
	FileType       string
	TotalSize      int64
	TotalChunks    int
	Metadata       models.EncryptionMetadata
}

// InitResult acknowledges a new session.
type InitResult struct {
	UploadID    string
	TotalChunks int
}

// ChunkProgress reports per-chunk submission progress.
type ChunkProgress struct {
	ChunkID        string
	ReceivedChunks int
	TotalChunks    int
	Progress       int
}

// FinalizeResult is the outcome of a buffered finalize.
type FinalizeResult struct {
	FileID         string
	MessageID      string
	URL            string
	Key            string
	Size           int64
	ElapsedSeconds float64
}

// StreamInitRequest starts a streaming (direct-to-storage) upload.
type StreamInitRequest struct {
	ConversationID string
	FileName       string
	FileType       string
	FileSize       int64
	TotalChunks    int
	ThumbnailURL   string
}

// StreamInitResult returns the presigned part URLs the client uploads to.
type StreamInitResult struct {
	UploadID    string
	UploadURLs  []string
	TotalChunks int
	ExpiresIn   int
}

// StreamFinalizeRequest completes a streaming upload. Parts holds the
// per-part entity tags in index order; Metadata is the full client-built
// encryption block.
type StreamFinalizeRequest struct {
	Parts    []string
	Metadata models.EncryptionMetadata
	FileName string
	FileType string
}

// StreamFinalizeResult is the outcome of a streaming finalize.
type StreamFinalizeResult struct {
	FileID       string
	MessageID    string
	URL          string
	Key          string
	ThumbnailURL string
	Metadata     models.EncryptionMetadata
}

// StatusResult is a read-only progress probe for one session.
type StatusResult struct {
	State          string
	ReceivedChunks int
	TotalChunks    int
	Progress       int
}
