// Package uploads implements the resumable chunked upload subsystem: the
// buffered ingestion path, the streaming multipart path, and the common
// finalizer that turns a complete set of chunks into a durable file record
// plus a chat message.
package uploads

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/notify"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/repomanager"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/sessions"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
)

const (
	// MaxBufferedSize is the hard ceiling for uploads that pass through the
	// application server.
	MaxBufferedSize = 100 << 20 // 100MB

	// MaxStreamingSize is the hard ceiling for direct-to-storage uploads.
	MaxStreamingSize = 500 << 20 // 500MB

	// readURLTTL bounds signed download URLs.
	readURLTTL = 15 * time.Minute
)

// Service owns both upload paths. The session store is its only shared
// mutable state; everything else is reached through injected collaborators.
type Service struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	store    sessions.Store
	blob     storage.Blob
	notifier notify.Notifier
	ttl      time.Duration
	logger   logging.Logger
}

func NewService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	store sessions.Store,
	blob storage.Blob,
	notifier notify.Notifier,
	ttl time.Duration,
	logger logging.Logger,
) *Service {
	if ttl <= 0 {
		ttl = sessions.DefaultTTL
	}
	return &Service{
		db:       db,
		repos:    repos,
		store:    store,
		blob:     blob,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger.With("module", "uploads"),
	}
}

// TTLSeconds is the expiry horizon surfaced to clients as expiresIn.
func (s *Service) TTLSeconds() int {
	return int(s.ttl / time.Second)
}

// Init starts a buffered upload session.
func (s *Service) Init(ctx context.Context, ownerID string, req InitRequest) (*InitResult, error) {
	var missing []string
	if req.FileName == "" {
		missing = append(missing, "fileName")
	}
	if req.TotalSize <= 0 {
		missing = append(missing, "totalSize")
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

	if req.TotalSize > MaxBufferedSize {
		return nil, fmt.Errorf("%w: file size %d exceeds buffered limit %d", common.ErrorBadRequest, req.TotalSize, MaxBufferedSize)
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
		TotalSize:      req.TotalSize,
		TotalChunks:    req.TotalChunks,
		Mode:           models.ModeBuffered,
		State:          models.StateCollecting,
		Chunks:         make(map[int][]byte),
		Metadata:       req.Metadata,
		CreatedAt:      time.Now(),
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := s.store.ScheduleExpiry(ctx, session.UploadID, s.ttl); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "buffered upload initialized",
		"upload_id", session.UploadID,
		"conversation_id", req.ConversationID,
		"total_chunks", req.TotalChunks,
		"total_size", req.TotalSize,
	)

	return &InitResult{UploadID: session.UploadID, TotalChunks: req.TotalChunks}, nil
}

// SubmitChunk records one buffered chunk. Resubmitting an index that is
// already present is a no-op that reports current progress, so client
// retries cannot double-count.
func (s *Service) SubmitChunk(ctx context.Context, callerID, uploadID, conversationID string, index int, data []byte) (*ChunkProgress, error) {
	if uploadID == "" {
		return nil, common.NewFieldError("uploadId")
	}
	if len(data) == 0 {
		return nil, common.NewFieldError("chunkData")
	}

	var progress ChunkProgress
	err := s.store.Update(ctx, uploadID, func(session *models.UploadSession) error {
		if session.OwnerID != callerID {
			return common.ErrorForbidden
		}
		if conversationID != "" && conversationID != session.ConversationID {
			return fmt.Errorf("%w: conversation mismatch", common.ErrorBadRequest)
		}
		if session.Mode != models.ModeBuffered {
			return fmt.Errorf("%w: not a buffered upload", common.ErrorBadRequest)
		}
		if session.State != models.StateCollecting {
			return common.ErrorConflict
		}
		if index < 0 || index >= session.TotalChunks {
			return fmt.Errorf("%w: chunk index %d out of range [0,%d)", common.ErrorBadRequest, index, session.TotalChunks)
		}

		// The declared size bounds the buffer, not just the init request.
		received := int64(len(data))
		for idx, c := range session.Chunks {
			if idx != index {
				received += int64(len(c))
			}
		}
		if received > session.TotalSize {
			return fmt.Errorf("%w: accumulated %d bytes exceeds declared size %d", common.ErrorBadRequest, received, session.TotalSize)
		}

		if _, ok := session.Chunks[index]; !ok {
			session.Chunks[index] = append([]byte(nil), data...)
		}

		progress = ChunkProgress{
			ChunkID:        fmt.Sprintf("%s_chunk_%d", uploadID, index),
			ReceivedChunks: len(session.Chunks),
			TotalChunks:    session.TotalChunks,
			Progress:       session.Progress(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &progress, nil
}

// Status reports session progress without mutating anything.
func (s *Service) Status(ctx context.Context, callerID, uploadID string) (*StatusResult, error) {
	session, err := s.store.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, common.ErrorForbidden
	}

	return &StatusResult{
		State:          string(session.State),
		ReceivedChunks: session.ReceivedCount(),
		TotalChunks:    session.TotalChunks,
		Progress:       session.Progress(),
	}, nil
}

// FileURL returns a signed read URL for a persisted file. The caller must
// own the file or belong to its conversation.
func (s *Service) FileURL(ctx context.Context, callerID, fileID string) (string, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return "", err
	}

	if file.OwnerID != callerID {
		ok, err := s.repos.Conversations(s.db).IsParticipant(ctx, file.ConversationID, callerID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", common.ErrorForbidden
		}
	}

	return s.blob.PresignGetObject(ctx, file.StorageKey, readURLTTL)
}

// HandleExpiredSession is installed as the session store's expiry callback.
// Streaming sessions leave an open multipart upload behind on the blob
// store, which would otherwise accumulate orphaned parts.
func (s *Service) HandleExpiredSession(ctx context.Context, session *models.UploadSession) {
	if session.Mode != models.ModeStreaming || session.StorageUploadID == "" {
		return
	}

	if err := s.blob.AbortMultipartUpload(ctx, session.StorageKey, session.StorageUploadID); err != nil {
		s.logger.Warn(ctx, "failed to abort expired multipart upload",
			"upload_id", session.UploadID,
			"storage_upload_id", session.StorageUploadID,
			"error", err,
		)
		return
	}

	s.logger.Info(ctx, "aborted expired multipart upload",
		"upload_id", session.UploadID,
		"storage_key", session.StorageKey,
	)
}

// checkRecipientCoverage verifies every wrapped key targets an actual
// conversation participant. Keys addressed to outsiders are named by field
// path so the client can drop or correct them.
func (s *Service) checkRecipientCoverage(ctx context.Context, conversationID string, keys []models.RecipientKey) error {
	participants, err := s.repos.Conversations(s.db).Participants(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("%w: list participants: %v", common.ErrorInternal, err)
	}

	members := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		members[p] = struct{}{}
	}

	var outside []string
	for i, k := range keys {
		if _, ok := members[k.UserID]; !ok {
			outside = append(outside, fmt.Sprintf("recipientKeys[%d].userId (not a participant)", i))
		}
	}
	if len(outside) > 0 {
		return common.NewFieldError(outside...)
	}
	return nil
}

// checkOwnerAndMembership resolves the uploader's record and confirms
// conversation membership. A missing owner record is NotFound, a
// non-member caller is Forbidden.
func (s *Service) checkOwnerAndMembership(ctx context.Context, ownerID, conversationID string) error {
	if _, err := s.repos.Users(s.db).GetByID(ctx, ownerID); err != nil {
		return err
	}

	ok, err := s.repos.Conversations(s.db).IsParticipant(ctx, conversationID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}
