// Package sessions implements the TTL-governed registry of in-progress
// upload sessions. The store is the only shared mutable resource in the
// upload subsystem: chunk submissions for different indices of the same
// upload may land in parallel and must not lose updates, which is why all
// writes go through an atomic read-modify-write on the session slot.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

// DefaultTTL is the expiry horizon for sessions that are never finalized.
const DefaultTTL = 2 * time.Hour

// Store is the session registry contract. The in-memory implementation
// below is the only one in-process today; the interface exists so callers
// never depend on that fact.
type Store interface {
	// Create inserts a new session. It fails with common.ErrorConflict if
	// the uploadId is already present.
	Create(ctx context.Context, session *models.UploadSession) error

	// Get returns a snapshot of the session or common.ErrorNotFound.
	Get(ctx context.Context, uploadID string) (*models.UploadSession, error)

	// Update runs mutate against the live session under the store lock.
	// Streaming init depends on this to attach storage identifiers to a
	// session that was created before the blob store responded.
	Update(ctx context.Context, uploadID string, mutate func(*models.UploadSession) error) error

	// Delete removes the session and disarms its timer. Idempotent.
	Delete(ctx context.Context, uploadID string)

	// ScheduleExpiry arms a timer that deletes the session if it is not
	// finalized within ttl. Re-arming replaces the previous timer.
	ScheduleExpiry(ctx context.Context, uploadID string, ttl time.Duration) error

	// CancelExpiry disarms the timer without deleting the session.
	CancelExpiry(ctx context.Context, uploadID string)
}

// ExpiryFunc is invoked after an expired session has been removed, e.g. to
// abort an orphaned multipart upload. It runs outside the store lock.
type ExpiryFunc func(ctx context.Context, session *models.UploadSession)

type entry struct {
	session *models.UploadSession
	timer   *time.Timer
}

// MemoryStore keeps sessions in a lock-protected map for the lifetime of
// the process. Losing them on restart is an accepted failure mode.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	onExpire ExpiryFunc
	logger   logging.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithExpiryFunc registers a callback for expired sessions.
func WithExpiryFunc(fn ExpiryFunc) Option {
	return func(s *MemoryStore) { s.onExpire = fn }
}

func NewMemoryStore(logger logging.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*entry),
		logger:   logger.With("module", "session_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetExpiryFunc installs the expiry callback after construction. The upload
// service needs this because the callback closes over the service, which in
// turn owns the store.
func (s *MemoryStore) SetExpiryFunc(fn ExpiryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

func (s *MemoryStore) Create(ctx context.Context, session *models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.UploadID]; ok {
		return common.ErrorConflict
	}

	s.sessions[session.UploadID] = &entry{session: session}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[uploadID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return snapshot(e.session), nil
}

func (s *MemoryStore) Update(ctx context.Context, uploadID string, mutate func(*models.UploadSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[uploadID]
	if !ok {
		return common.ErrorNotFound
	}
	return mutate(e.session)
}

func (s *MemoryStore) Delete(ctx context.Context, uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(uploadID)
}

func (s *MemoryStore) ScheduleExpiry(ctx context.Context, uploadID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[uploadID]
	if !ok {
		return common.ErrorNotFound
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(ttl, func() { s.expire(uploadID) })
	return nil
}

func (s *MemoryStore) CancelExpiry(ctx context.Context, uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[uploadID]; ok && e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// expire runs on the timer goroutine. Any request racing this deletion
// observes NotFound afterwards, which is the designed resolution.
func (s *MemoryStore) expire(uploadID string) {
	s.mu.Lock()
	e, ok := s.sessions[uploadID]
	var session *models.UploadSession
	if ok {
		session = snapshot(e.session)
		s.remove(uploadID)
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	if !ok {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "session expired", "upload_id", uploadID, "mode", string(session.Mode))
	if onExpire != nil {
		onExpire(ctx, session)
	}
}

// remove must be called with the lock held.
func (s *MemoryStore) remove(uploadID string) {
	if e, ok := s.sessions[uploadID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.sessions, uploadID)
	}
}

// snapshot copies the session so callers can read it without holding the
// store lock. Chunk payloads are immutable once stored, so the byte slices
// themselves are shared.
func snapshot(in *models.UploadSession) *models.UploadSession {
	out := *in

	if in.Chunks != nil {
		out.Chunks = make(map[int][]byte, len(in.Chunks))
		for k, v := range in.Chunks {
			out.Chunks[k] = v
		}
	}
	if in.UploadedChunks != nil {
		out.UploadedChunks = make(map[int]struct{}, len(in.UploadedChunks))
		for k := range in.UploadedChunks {
			out.UploadedChunks[k] = struct{}{}
		}
	}
	if in.UploadURLs != nil {
		out.UploadURLs = append([]string(nil), in.UploadURLs...)
	}
	return &out
}
