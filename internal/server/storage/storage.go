// Package storage is the adapter to S3-compatible object storage. The rest
// of the upload subsystem depends on the Blob interface only; failures come
// back as typed BackendError values so callers can tell a transport timeout
// (retry finalize) from a backend rejection (abandon) without inspecting
// message text.
package storage

import (
	"context"
	"time"
)

// ObjectRef identifies a stored object.
type ObjectRef struct {
	Key string
	URL string
}

// PutInput describes a single-shot object upload. Metadata entries are
// stored as object attributes alongside the ciphertext.
type PutInput struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// CompletedPart is one client-confirmed multipart part: its 1-based part
// number and the entity tag the blob store returned for it.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Blob is the object-storage contract consumed by the upload paths.
type Blob interface {
	// PutObject uploads a whole object in one call.
	PutObject(ctx context.Context, in PutInput) (*ObjectRef, error)

	// CreateMultipartUpload opens a multipart upload and returns the
	// storage-assigned upload identifier.
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)

	// PresignUploadPart returns a URL a client can PUT one part to
	// directly, valid for expires.
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error)

	// CompleteMultipartUpload assembles the uploaded parts, which must be
	// supplied in part-number order.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*ObjectRef, error)

	// AbortMultipartUpload discards an open multipart upload and its parts.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error

	// PresignGetObject returns a read URL valid for expires.
	PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error)
}
