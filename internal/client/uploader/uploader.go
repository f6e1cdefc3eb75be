// Package uploader drives the encrypt-chunk-upload-finalize flow against
// the upload API. It owns all client-side cryptography: the server only
// ever sees ciphertext chunks and the opaque metadata block assembled here.
package uploader

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/cryptox"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/filex"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/netx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

// DefaultChunkSize is 5MB, the minimum S3 part size, so the same splitting
// works for both upload modes.
const DefaultChunkSize = 5 << 20

// Recipient identifies one conversation participant and the public key the
// file key is wrapped for.
type Recipient struct {
	UserID    string
	PublicKey *ecdh.PublicKey
}

// Config carries the connection settings for one uploader instance.
type Config struct {
	BaseURL   string
	Token     string
	ChunkSize int
}

// Uploader is a thin resty-based client for the upload API.
type Uploader struct {
	c         *resty.Client
	chunkSize int
	logger    logging.Logger
}

func New(cfg Config, logger logging.Logger) *Uploader {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Uploader{
		c:         resty.New().SetBaseURL(cfg.BaseURL).SetAuthToken(cfg.Token),
		chunkSize: chunkSize,
		logger:    logger.With("module", "uploader"),
	}
}

// Result reports the persisted attachment after a successful upload.
type Result struct {
	FileID    string `json:"fileId"`
	MessageID string `json:"messageId"`
	URL       string `json:"url"`
	Key       string `json:"key"`
}

type initResponse struct {
	UploadID    string `json:"uploadId"`
	TotalChunks int    `json:"totalChunks"`
	ExpiresIn   int    `json:"expiresIn"`
}

type streamInitResponse struct {
	UploadID    string   `json:"uploadId"`
	UploadURLs  []string `json:"uploadUrls"`
	TotalChunks int      `json:"totalChunks"`
	ExpiresIn   int      `json:"expiresIn"`
}

type apiError struct {
	Message string   `json:"error"`
	Code    string   `json:"code"`
	Fields  []string `json:"fields,omitempty"`
}

func (e *apiError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (%s): fields %v", e.Message, e.Code, e.Fields)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// encryptedFile is the outcome of the local encryption pass: ciphertext
// chunks plus the metadata block the server stores verbatim.
type encryptedFile struct {
	chunks   [][]byte
	metadata models.EncryptionMetadata
	size     int64
}

// encryptFile splits plaintext into chunks, encrypts each under its own
// derived key, and wraps the file key for every recipient.
func encryptFile(plaintext []byte, chunkSize int, recipients []Recipient) (*encryptedFile, error) {
	fileKey, err := cryptox.NewFileKey()
	if err != nil {
		return nil, err
	}

	plain := filex.SplitChunks(plaintext, chunkSize)
	if len(plain) == 0 {
		return nil, fmt.Errorf("nothing to upload")
	}

	out := &encryptedFile{chunks: make([][]byte, 0, len(plain))}
	meta := models.EncryptionMetadata{OriginalSize: int64(len(plaintext))}

	for i, p := range plain {
		key, err := cryptox.DeriveChunkKey(fileKey, i)
		if err != nil {
			return nil, err
		}
		enc, err := cryptox.EncryptChunk(key, p)
		if err != nil {
			return nil, err
		}

		out.chunks = append(out.chunks, enc.Ciphertext)
		meta.Chunks = append(meta.Chunks, models.ChunkMeta{
			IV:            base64.StdEncoding.EncodeToString(enc.IV),
			AuthTag:       base64.StdEncoding.EncodeToString(enc.AuthTag),
			GCMAuthTag:    base64.StdEncoding.EncodeToString(enc.GCMAuthTag),
			OriginalSize:  int64(len(p)),
			EncryptedSize: int64(len(enc.Ciphertext)),
		})
		out.size += int64(len(enc.Ciphertext))
	}

	// File-level tags mirror the first chunk; per-chunk entries are
	// authoritative.
	meta.IV = meta.Chunks[0].IV
	meta.AuthTag = meta.Chunks[0].AuthTag
	meta.EncryptedSize = out.size

	for _, r := range recipients {
		wrapped, err := cryptox.WrapFileKey(fileKey, r.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("wrap key for %s: %w", r.UserID, err)
		}
		meta.RecipientKeys = append(meta.RecipientKeys, models.RecipientKey{
			UserID:                r.UserID,
			EncryptedSymmetricKey: base64.StdEncoding.EncodeToString(wrapped.Encrypted),
			KeyIV:                 base64.StdEncoding.EncodeToString(wrapped.KeyIV),
			KeyAuthTag:            base64.StdEncoding.EncodeToString(wrapped.KeyTag),
		})
	}

	out.metadata = meta
	return out, nil
}

// post sends one JSON request and decodes either the success payload or the
// API error body.
func (u *Uploader) post(ctx context.Context, path string, body, result any) error {
	var apiErr apiError
	resp, err := u.c.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &apiErr
	}
	return nil
}

// UploadBuffered pushes the file through the server-buffered path: every
// ciphertext chunk travels through the API and the server assembles the
// object.
func (u *Uploader) UploadBuffered(ctx context.Context, path, conversationID string, recipients []Recipient) (*Result, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	enc, err := encryptFile(plaintext, u.chunkSize, recipients)
	if err != nil {
		return nil, err
	}

	var initRes initResponse
	err = u.post(ctx, "/api/upload/init", map[string]any{
		"conversationId": conversationID,
		"fileName":       filepath.Base(path),
		"fileType":       filex.DetectContentType(path),
		"totalSize":      enc.size,
		"totalChunks":    len(enc.chunks),
		"metadata":       enc.metadata,
	}, &initRes)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	u.logger.Info(ctx, "upload session opened", "upload_id", initRes.UploadID, "chunks", len(enc.chunks))

	for i, chunk := range enc.chunks {
		err = u.post(ctx, "/api/upload/chunk", map[string]any{
			"uploadId":       initRes.UploadID,
			"conversationId": conversationID,
			"chunkIndex":     i,
			"chunkData":      base64.StdEncoding.EncodeToString(chunk),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	var result Result
	err = u.post(ctx, "/api/upload/finalize", map[string]any{
		"uploadId": initRes.UploadID,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	return &result, nil
}

// UploadStreaming pushes the file through the direct-to-storage path: the
// ciphertext chunks go straight to the presigned part URLs and only the
// entity tags travel back through the API.
func (u *Uploader) UploadStreaming(ctx context.Context, path, conversationID string, recipients []Recipient) (*Result, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	enc, err := encryptFile(plaintext, u.chunkSize, recipients)
	if err != nil {
		return nil, err
	}

	var initRes streamInitResponse
	err = u.post(ctx, "/api/upload/init-streaming", map[string]any{
		"conversationId": conversationID,
		"fileName":       filepath.Base(path),
		"fileType":       filex.DetectContentType(path),
		"fileSize":       enc.size,
		"totalChunks":    len(enc.chunks),
	}, &initRes)
	if err != nil {
		return nil, fmt.Errorf("init-streaming: %w", err)
	}

	if len(initRes.UploadURLs) != len(enc.chunks) {
		return nil, fmt.Errorf("expected %d part urls, got %d", len(enc.chunks), len(initRes.UploadURLs))
	}

	etags := make([]string, len(enc.chunks))
	for i, chunk := range enc.chunks {
		etag, err := netx.UploadToS3PresignedURL(ctx, initRes.UploadURLs[i], chunk)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i+1, err)
		}
		etags[i] = etag
	}

	var result Result
	err = u.post(ctx, "/api/upload/finalize-streaming", map[string]any{
		"uploadId": initRes.UploadID,
		"parts":    etags,
		"metadata": enc.metadata,
		"fileName": filepath.Base(path),
		"fileType": filex.DetectContentType(path),
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("finalize-streaming: %w", err)
	}

	return &result, nil
}
