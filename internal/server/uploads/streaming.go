package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
)

// InitStreaming opens a streaming upload: a multipart upload on the blob
// store and one presigned part URL per chunk. The session is created before
// the blob store is contacted, so the storage identifiers that come back
// are attached to a slot that is guaranteed to exist; that ordering is what
// keeps the attach step race-free.
func (s *Service) InitStreaming(ctx context.Context, ownerID string, req StreamInitRequest) (*StreamInitResult, error) {
	var missing []string
	if req.FileName == "" {
		missing = append(missing, "fileName")
	}
	if req.FileSize <= 0 {
		missing = append(missing, "fileSize")
	}
	if req.TotalChunks <= 0 {
		missing = append(missing, "totalChunks")
	}
	if req.ConversationID == "" {
		missing = append(missing, "conversationId")
	}
	if len(missing) > 0 {
		return nil, common.NewFieldError(missing...)
	}

	if req.FileSize > MaxStreamingSize {
		return nil, fmt.Errorf("%w: file size %d exceeds streaming limit %d", common.ErrorBadRequest, req.FileSize, MaxStreamingSize)
	}

	if err := s.checkOwnerAndMembership(ctx, ownerID, req.ConversationID); err != nil {
		return nil, err
	}

	session := &models.UploadSession{
		UploadID:       uuid.New().String(),
		OwnerID:        ownerID,
		ConversationID: req.ConversationID,
		FileName:       req.FileName,
		FileType:       req.FileType,
		TotalSize:      req.FileSize,
		TotalChunks:    req.TotalChunks,
		Mode:           models.ModeStreaming,
		State:          models.StateCollecting,
		UploadedChunks: make(map[int]struct{}),
		ThumbnailURL:   req.ThumbnailURL,
		CreatedAt:      time.Now(),
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	key := storage.RandomStorageKey(req.ConversationID)
	storageUploadID, err := s.blob.CreateMultipartUpload(ctx, key, req.FileType)
	if err != nil {
		s.store.Delete(ctx, session.UploadID)
		return nil, err
	}

	urls := make([]string, 0, req.TotalChunks)
	for part := 1; part <= req.TotalChunks; part++ {
		url, err := s.blob.PresignUploadPart(ctx, key, storageUploadID, int32(part), s.ttl)
		if err != nil {
			s.store.Delete(ctx, session.UploadID)
			if abortErr := s.blob.AbortMultipartUpload(ctx, key, storageUploadID); abortErr != nil {
				s.logger.Warn(ctx, "failed to abort multipart upload after presign failure",
					"upload_id", session.UploadID, "error", abortErr)
			}
			return nil, err
		}
		urls = append(urls, url)
	}

	// Second phase of the two-phase write: attach the storage identifiers
	// to the already-existing session.
	err = s.store.Update(ctx, session.UploadID, func(live *models.UploadSession) error {
		live.StorageUploadID = storageUploadID
		live.StorageKey = key
		live.UploadURLs = urls
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.ScheduleExpiry(ctx, session.UploadID, s.ttl); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "streaming upload initialized",
		"upload_id", session.UploadID,
		"conversation_id", req.ConversationID,
		"storage_upload_id", storageUploadID,
		"parts", req.TotalChunks,
	)

	return &StreamInitResult{
		UploadID:    session.UploadID,
		UploadURLs:  urls,
		TotalChunks: req.TotalChunks,
		ExpiresIn:   s.TTLSeconds(),
	}, nil
}

// FinalizeStreaming completes a streaming upload from the client's part
// tags and encryption metadata. Validation runs in documented order, each
// failure naming the offending field paths; only then is the blob store
// asked to assemble the object.
func (s *Service) FinalizeStreaming(ctx context.Context, callerID, uploadID string, req StreamFinalizeRequest) (*StreamFinalizeResult, error) {
	if uploadID == "" {
		return nil, common.NewFieldError("uploadId")
	}

	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}

	session, err := s.claimForFinalize(ctx, callerID, uploadID, models.ModeStreaming, func(live *models.UploadSession) error {
		if len(req.Parts) != live.TotalChunks {
			return &common.IncompleteUploadError{Received: len(req.Parts), Total: live.TotalChunks}
		}
		if live.StorageUploadID == "" || live.StorageKey == "" {
			return fmt.Errorf("%w: storage upload was never opened", common.ErrorInternal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.checkRecipientCoverage(ctx, session.ConversationID, req.Metadata.RecipientKeys); err != nil {
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	parts := make([]storage.CompletedPart, 0, len(req.Parts))
	for i, tag := range req.Parts {
		parts = append(parts, storage.CompletedPart{PartNumber: int32(i + 1), ETag: tag})
	}

	ref, err := s.blob.CompleteMultipartUpload(ctx, session.StorageKey, session.StorageUploadID, parts)
	if err != nil {
		// Both failure kinds leave the session intact: a timeout is
		// retriable as-is, a rejection needs client attention but must not
		// destroy the ability to retry.
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	fileName := session.FileName
	if req.FileName != "" {
		fileName = req.FileName
	}
	fileType := session.FileType
	if req.FileType != "" {
		fileType = req.FileType
	}

	size := req.Metadata.EncryptedSize
	if size == 0 {
		size = session.TotalSize
	}

	file, message, err := s.persistAttachment(ctx, session, ref, fileName, fileType, size, req.Metadata)
	if err != nil {
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	s.store.Delete(ctx, uploadID)

	s.logger.Info(ctx, "streaming upload finalized",
		"upload_id", uploadID,
		"file_id", file.ID,
		"message_id", message.ID,
		"parts", len(parts),
	)

	return &StreamFinalizeResult{
		FileID:       file.ID,
		MessageID:    message.ID,
		URL:          ref.URL,
		Key:          ref.Key,
		ThumbnailURL: session.ThumbnailURL,
		Metadata:     req.Metadata,
	}, nil
}
