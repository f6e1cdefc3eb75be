package models

import "time"

// File is the durable record created by the finalizer for one uploaded
// attachment. The ciphertext itself lives in object storage under
// StorageKey; the server keeps only metadata and never holds a decryption
// key in usable form.
type File struct {
	ID             string
	OwnerID        string
	ConversationID string

	Name      string
	MimeType  string
	SizeBytes int64

	StorageKey string
	StorageURL string

	Encryption EncryptionMetadata

	CreatedAt time.Time
}

// EncryptionMetadata is the opaque cryptographic material supplied by the
// client, stored verbatim as JSONB. File-level fields cover the whole
// object; Chunks is index-ordered.
type EncryptionMetadata struct {
	IV            string         `json:"iv"`
	AuthTag       string         `json:"authTag"`
	OriginalSize  int64          `json:"originalSize"`
	EncryptedSize int64          `json:"encryptedSize"`
	Chunks        []ChunkMeta    `json:"chunks,omitempty"`
	RecipientKeys []RecipientKey `json:"recipientKeys,omitempty"`
}

// ChunkMeta carries the per-chunk cryptographic fields. All three tags are
// mandatory; finalize rejects a chunk entry missing any of them.
type ChunkMeta struct {
	IV            string `json:"iv"`
	AuthTag       string `json:"authTag"`
	GCMAuthTag    string `json:"gcmAuthTag"`
	OriginalSize  int64  `json:"originalSize"`
	EncryptedSize int64  `json:"encryptedSize"`
}

// RecipientKey is the file's symmetric key wrapped for one conversation
// participant.
type RecipientKey struct {
	UserID                string `json:"userId"`
	EncryptedSymmetricKey string `json:"encryptedSymmetricKey"`
	KeyIV                 string `json:"keyIv"`
	KeyAuthTag            string `json:"keyAuthTag"`
}
