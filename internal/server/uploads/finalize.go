package uploads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/notify"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
)

// Finalize completes a buffered upload: it verifies the chunk set is whole,
// reassembles the ciphertext in index order, uploads it as one object, and
// persists the file and message records. The session survives a storage
// failure so the client can retry finalize without re-uploading chunks.
func (s *Service) Finalize(ctx context.Context, callerID, uploadID string) (*FinalizeResult, error) {
	session, err := s.claimForFinalize(ctx, callerID, uploadID, models.ModeBuffered, func(live *models.UploadSession) error {
		if len(live.Chunks) != live.TotalChunks {
			return &common.IncompleteUploadError{Received: len(live.Chunks), Total: live.TotalChunks}
		}
		return validateMetadata(live.Metadata)
	})
	if err != nil {
		return nil, err
	}

	if err := s.checkRecipientCoverage(ctx, session.ConversationID, session.Metadata.RecipientKeys); err != nil {
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	// Reassembly is index-ordered, never arrival-ordered.
	payload := make([]byte, 0, session.TotalSize)
	for i := 0; i < session.TotalChunks; i++ {
		payload = append(payload, session.Chunks[i]...)
	}

	ref, err := s.blob.PutObject(ctx, storage.PutInput{
		Key:         storage.RandomStorageKey(session.ConversationID),
		Body:        payload,
		ContentType: session.FileType,
		Metadata:    objectAttributes(session.Metadata),
	})
	if err != nil {
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	meta := session.Metadata
	if meta.EncryptedSize == 0 {
		meta.EncryptedSize = int64(len(payload))
	}

	file, message, err := s.persistAttachment(ctx, session, ref, session.FileName, session.FileType, int64(len(payload)), meta)
	if err != nil {
		s.releaseFinalizeClaim(ctx, uploadID)
		return nil, err
	}

	s.store.Delete(ctx, uploadID)

	s.logger.Info(ctx, "buffered upload finalized",
		"upload_id", uploadID,
		"file_id", file.ID,
		"message_id", message.ID,
		"size", len(payload),
	)

	return &FinalizeResult{
		FileID:         file.ID,
		MessageID:      message.ID,
		URL:            ref.URL,
		Key:            ref.Key,
		Size:           int64(len(payload)),
		ElapsedSeconds: time.Since(session.CreatedAt).Seconds(),
	}, nil
}

// claimForFinalize atomically moves a session from collecting to finalizing
// after running the caller's preconditions, and returns a snapshot of it.
// A concurrent finalize for the same uploadId observes the finalizing state
// and is rejected; one arriving after success observes NotFound.
func (s *Service) claimForFinalize(ctx context.Context, callerID, uploadID string, mode models.UploadMode, precheck func(*models.UploadSession) error) (*models.UploadSession, error) {
	err := s.store.Update(ctx, uploadID, func(live *models.UploadSession) error {
		if live.OwnerID != callerID {
			return common.ErrorForbidden
		}
		if live.Mode != mode {
			return fmt.Errorf("%w: wrong upload mode", common.ErrorBadRequest)
		}
		if live.State != models.StateCollecting {
			return fmt.Errorf("%w: finalize already in progress", common.ErrorConflict)
		}
		if err := precheck(live); err != nil {
			return err
		}
		live.State = models.StateFinalizing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.store.Get(ctx, uploadID)
}

// releaseFinalizeClaim puts a session back into collecting after a failed
// finalize so the client can retry. The session may have expired in the
// meantime; that race resolves itself as NotFound on the retry.
func (s *Service) releaseFinalizeClaim(ctx context.Context, uploadID string) {
	err := s.store.Update(ctx, uploadID, func(live *models.UploadSession) error {
		live.State = models.StateCollecting
		return nil
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "failed to release finalize claim", "upload_id", uploadID, "error", err)
	}
}

// persistAttachment is the common durable tail of both finalize variants:
// create the file record, then the message referencing it, then move the
// conversation pointer, then fire the best-effort notification. The message
// and conversation writes share a transaction; a failure there leaves the
// already-persisted file as a logged orphan rather than rolling it back.
func (s *Service) persistAttachment(
	ctx context.Context,
	session *models.UploadSession,
	ref *storage.ObjectRef,
	fileName, fileType string,
	size int64,
	meta models.EncryptionMetadata,
) (*models.File, *models.Message, error) {

	file := &models.File{
		ID:             uuid.New().String(),
		OwnerID:        session.OwnerID,
		ConversationID: session.ConversationID,
		Name:           fileName,
		MimeType:       fileType,
		SizeBytes:      size,
		StorageKey:     ref.Key,
		StorageURL:     ref.URL,
		Encryption:     meta,
	}

	if err := s.repos.Files(s.db).Create(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("%w: create file record: %v", common.ErrorInternal, err)
	}

	message := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: session.ConversationID,
		SenderID:       session.OwnerID,
		FileID:         file.ID,
		Type:           models.MessageTypeForMime(fileType),
		Content:        fileName,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Messages(tx).Create(ctx, message); err != nil {
			return err
		}
		return s.repos.Conversations(tx).SetLastMessage(ctx, session.ConversationID, message.ID, time.Now())
	})
	if err != nil {
		// The file stays persisted with no message; the surrounding system
		// reconciles such orphans later.
		s.logger.Error(ctx, "message creation failed after file persisted",
			"upload_id", session.UploadID,
			"file_id", file.ID,
			"error", err,
		)
		return nil, nil, fmt.Errorf("%w: create message: %v", common.ErrorInternal, err)
	}

	notify.Dispatch(s.notifier, s.logger, notify.MessageEvent{
		ConversationID: session.ConversationID,
		MessageID:      message.ID,
		FileID:         file.ID,
		SenderID:       session.OwnerID,
		MessageType:    string(message.Type),
	})

	return file, message, nil
}

// objectAttributes flattens file-level encryption metadata into storage-side
// object attributes.
func objectAttributes(meta models.EncryptionMetadata) map[string]string {
	attrs := map[string]string{}
	if meta.IV != "" {
		attrs["iv"] = meta.IV
	}
	if meta.AuthTag != "" {
		attrs["auth-tag"] = meta.AuthTag
	}
	if meta.OriginalSize > 0 {
		attrs["original-size"] = strconv.FormatInt(meta.OriginalSize, 10)
	}
	if meta.EncryptedSize > 0 {
		attrs["encrypted-size"] = strconv.FormatInt(meta.EncryptedSize, 10)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
