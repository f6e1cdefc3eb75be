package uploads

// Shared fakes for the upload service tests. The database handle is a
// sqlmock connection so the transactional tail of finalize runs against
// real Begin/Commit plumbing while the repositories themselves are
// in-memory fakes.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/notify"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/conversations"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/files"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/messages"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/users"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/sessions"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
)

// -------- repositories --------

type fakeUsersRepo struct {
	known map[string]bool
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !f.known[id] {
		return nil, common.ErrorNotFound
	}
	return &models.User{ID: id, Username: "user-" + id}, nil
}

type fakeFilesRepo struct {
	mu        sync.Mutex
	created   []*models.File
	createErr error
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	file.CreatedAt = time.Now()
	f.created = append(f.created, file)
	return nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.created {
		if file.ID == id {
			return file, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeMessagesRepo struct {
	mu        sync.Mutex
	created   []*models.Message
	createErr error
}

func (f *fakeMessagesRepo) Create(ctx context.Context, message *models.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	message.CreatedAt = time.Now()
	f.created = append(f.created, message)
	return nil
}

type fakeConversationsRepo struct {
	mu            sync.Mutex
	members       map[string][]string
	lastMessageID string
}

func (f *fakeConversationsRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	for _, m := range f.members[conversationID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConversationsRepo) Participants(ctx context.Context, conversationID string) ([]string, error) {
	return f.members[conversationID], nil
}

func (f *fakeConversationsRepo) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessageID = messageID
	return nil
}

type fakeRepoManager struct {
	users *fakeUsersRepo
	files *fakeFilesRepo
	msgs  *fakeMessagesRepo
	convs *fakeConversationsRepo
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository                  { return f.users }
func (f *fakeRepoManager) Files(db dbx.DBTX) files.Repository                  { return f.files }
func (f *fakeRepoManager) Messages(db dbx.DBTX) messages.Repository            { return f.msgs }
func (f *fakeRepoManager) Conversations(db dbx.DBTX) conversations.Repository  { return f.convs }

// -------- blob storage --------

type fakeBlob struct {
	mu sync.Mutex

	putErr      error
	putErrOnce  bool
	lastPut     *storage.PutInput
	putCalls    int
	createErr   error
	onCreate    func(key string)
	completeErr error
	lastParts   []storage.CompletedPart
	lastKey     string
	lastMPU     string
	aborted     []string
	presignErr  error
}

func (f *fakeBlob) PutObject(ctx context.Context, in storage.PutInput) (*storage.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		err := f.putErr
		if f.putErrOnce {
			f.putErr = nil
		}
		return nil, err
	}
	f.lastPut = &in
	return &storage.ObjectRef{Key: in.Key, URL: "http://blob/" + in.Key}, nil
}

func (f *fakeBlob) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	f.mu.Lock()
	onCreate := f.onCreate
	err := f.createErr
	f.mu.Unlock()
	if onCreate != nil {
		onCreate(key)
	}
	if err != nil {
		return "", err
	}
	return "mpu-1", nil
}

func (f *fakeBlob) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return fmt.Sprintf("https://blob.example/%s/part/%d", key, partNumber), nil
}

func (f *fakeBlob) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (*storage.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.lastKey = key
	f.lastMPU = uploadID
	f.lastParts = append([]storage.CompletedPart(nil), parts...)
	return &storage.ObjectRef{Key: key, URL: "http://blob/" + key}, nil
}

func (f *fakeBlob) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeBlob) Aborted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborted...)
}

func (f *fakeBlob) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://blob.example/signed/" + key, nil
}

// -------- notifier --------

type fakeNotifier struct {
	events chan notify.MessageEvent
	err    error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan notify.MessageEvent, 8)}
}

func (f *fakeNotifier) MessageCreated(ctx context.Context, event notify.MessageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events <- event
	return nil
}

// -------- wiring --------

type testEnv struct {
	svc   *Service
	store *sessions.MemoryStore
	blob  *fakeBlob
	repos *fakeRepoManager
	note  *fakeNotifier
	mock  sqlmock.Sqlmock
}

const (
	testOwner = "user-1"
	testPeer  = "user-2"
	testConv  = "conv-1"
)

func newTestEnv(t *testing.T, ttl time.Duration) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// The fakes ignore the handle; only transaction begin/commit reaches it.
	mock.MatchExpectationsInOrder(false)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	store := sessions.NewMemoryStore(logger)
	blob := &fakeBlob{}
	repos := &fakeRepoManager{
		users: &fakeUsersRepo{known: map[string]bool{testOwner: true, testPeer: true}},
		files: &fakeFilesRepo{},
		msgs:  &fakeMessagesRepo{},
		convs: &fakeConversationsRepo{members: map[string][]string{testConv: {testOwner, testPeer}}},
	}
	note := newFakeNotifier()

	svc := NewService(db, repos, store, blob, note, ttl, logger)
	store.SetExpiryFunc(svc.HandleExpiredSession)

	return &testEnv{svc: svc, store: store, blob: blob, repos: repos, note: note, mock: mock}
}

// expectPersistTx arms the sqlmock for one message+conversation transaction.
func (e *testEnv) expectPersistTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

func validMetadata(recipients ...string) models.EncryptionMetadata {
	if len(recipients) == 0 {
		recipients = []string{testOwner, testPeer}
	}
	keys := make([]models.RecipientKey, 0, len(recipients))
	for _, r := range recipients {
		keys = append(keys, models.RecipientKey{
			UserID:                r,
			EncryptedSymmetricKey: "a2V5LWZvci0" + r,
			KeyIV:                 "a2l2",
			KeyAuthTag:            "a3RhZw==",
		})
	}
	return models.EncryptionMetadata{
		IV:            "aXY=",
		AuthTag:       "dGFn",
		OriginalSize:  280,
		EncryptedSize: 300,
		RecipientKeys: keys,
	}
}

func metadataWithChunks(n int, recipients ...string) models.EncryptionMetadata {
	meta := validMetadata(recipients...)
	for i := 0; i < n; i++ {
		meta.Chunks = append(meta.Chunks, models.ChunkMeta{
			IV:            fmt.Sprintf("aXYt%d", i),
			AuthTag:       fmt.Sprintf("dGFnLQ%d", i),
			GCMAuthTag:    fmt.Sprintf("Z2NtLQ%d", i),
			OriginalSize:  100,
			EncryptedSize: 116,
		})
	}
	return meta
}
