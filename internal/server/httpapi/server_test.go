package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/auth"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/uploads"
)

const testSecret = "test-secret"

// fakeService records the last call per method and returns canned results.
type fakeService struct {
	lastMethod string
	lastCaller string
	lastChunk  []byte
	err        error
}

func (f *fakeService) Init(ctx context.Context, ownerID string, req uploads.InitRequest) (*uploads.InitResult, error) {
	f.lastMethod, f.lastCaller = "init", ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.InitResult{UploadID: "up-1", TotalChunks: req.TotalChunks}, nil
}

func (f *fakeService) SubmitChunk(ctx context.Context, callerID, uploadID, conversationID string, index int, data []byte) (*uploads.ChunkProgress, error) {
	f.lastMethod, f.lastCaller, f.lastChunk = "chunk", callerID, data
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.ChunkProgress{ChunkID: "up-1_chunk_0", ReceivedChunks: 1, TotalChunks: 3, Progress: 33}, nil
}

func (f *fakeService) Finalize(ctx context.Context, callerID, uploadID string) (*uploads.FinalizeResult, error) {
	f.lastMethod, f.lastCaller = "finalize", callerID
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.FinalizeResult{FileID: "file-1", MessageID: "msg-1", URL: "http://blob/x", Key: "x", Size: 42}, nil
}

func (f *fakeService) InitStreaming(ctx context.Context, ownerID string, req uploads.StreamInitRequest) (*uploads.StreamInitResult, error) {
	f.lastMethod, f.lastCaller = "init-streaming", ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.StreamInitResult{UploadID: "up-2", UploadURLs: []string{"u1", "u2"}, TotalChunks: 2, ExpiresIn: 7200}, nil
}

func (f *fakeService) FinalizeStreaming(ctx context.Context, callerID, uploadID string, req uploads.StreamFinalizeRequest) (*uploads.StreamFinalizeResult, error) {
	f.lastMethod, f.lastCaller = "finalize-streaming", callerID
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.StreamFinalizeResult{FileID: "file-2", MessageID: "msg-2"}, nil
}

func (f *fakeService) Status(ctx context.Context, callerID, uploadID string) (*uploads.StatusResult, error) {
	f.lastMethod, f.lastCaller = "status", callerID
	if f.err != nil {
		return nil, f.err
	}
	return &uploads.StatusResult{State: "collecting", ReceivedChunks: 1, TotalChunks: 4, Progress: 25}, nil
}

func (f *fakeService) FileURL(ctx context.Context, callerID, fileID string) (string, error) {
	f.lastMethod, f.lastCaller = "file-url", callerID
	if f.err != nil {
		return "", f.err
	}
	return "https://blob.example/signed/" + fileID, nil
}

func (f *fakeService) TTLSeconds() int { return 7200 }

func newTestServer(t *testing.T) (*Server, *fakeService) {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	svc := &fakeService{}
	return NewServer(":0", logger, svc, testSecret), svc
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestAuthMiddleware(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/upload/init", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeErr(t, rec).Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/upload/init", "Bearer garbage", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid token reaches the handler with the token's user id.
	rec = doRequest(t, srv, http.MethodPost, "/api/upload/init", bearerToken(t, "user-9"), map[string]any{"totalChunks": 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", svc.lastCaller)
}

func TestInitRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/upload/init", bearerToken(t, "u"), map[string]any{
		"conversationId": "c1", "fileName": "a.png", "totalSize": 10, "totalChunks": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res initResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "up-1", res.UploadID)
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, 7200, res.ExpiresIn)
}

func TestChunkRoute_DecodesBase64(t *testing.T) {
	srv, svc := newTestServer(t)
	token := bearerToken(t, "u")

	payload := []byte("raw-chunk-bytes")
	rec := doRequest(t, srv, http.MethodPost, "/api/upload/chunk", token, map[string]any{
		"uploadId":   "up-1",
		"chunkIndex": 0,
		"chunkData":  base64.StdEncoding.EncodeToString(payload),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, svc.lastChunk)

	rec = doRequest(t, srv, http.MethodPost, "/api/upload/chunk", token, map[string]any{
		"uploadId":  "up-1",
		"chunkData": "%%% not base64 %%%",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"chunkData"}, decodeErr(t, rec).Fields)
}

func TestErrorMapping(t *testing.T) {
	received, total, missing := 2, 3, 1

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		check      func(t *testing.T, e errorBody)
	}{
		{name: "forbidden", err: common.ErrorForbidden, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "not found", err: common.ErrorNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "conflict", err: common.ErrorConflict, wantStatus: http.StatusConflict, wantCode: "conflict"},
		{name: "field error", err: common.NewFieldError("fileName"), wantStatus: http.StatusBadRequest, wantCode: "bad_request",
			check: func(t *testing.T, e errorBody) {
				assert.Equal(t, []string{"fileName"}, e.Fields)
			}},
		{name: "incomplete", err: &common.IncompleteUploadError{Received: received, Total: total},
			wantStatus: http.StatusBadRequest, wantCode: "incomplete_upload",
			check: func(t *testing.T, e errorBody) {
				require.NotNil(t, e.Received)
				assert.Equal(t, received, *e.Received)
				assert.Equal(t, total, *e.Total)
				assert.Equal(t, missing, *e.Missing)
			}},
		{name: "storage timeout", err: storage.Classify("put_object", context.DeadlineExceeded),
			wantStatus: http.StatusInternalServerError, wantCode: "backend_failure",
			check: func(t *testing.T, e errorBody) {
				assert.Equal(t, "timeout", e.Subcode)
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, svc := newTestServer(t)
			svc.err = tt.err

			rec := doRequest(t, srv, http.MethodPost, "/api/upload/finalize", bearerToken(t, "u"), map[string]any{"uploadId": "x"})
			assert.Equal(t, tt.wantStatus, rec.Code)

			e := decodeErr(t, rec)
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestStatusAndFileURLRoutes(t *testing.T) {
	srv, svc := newTestServer(t)
	token := bearerToken(t, "u")

	rec := doRequest(t, srv, http.MethodGet, "/api/upload/up-1/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "collecting", status.Status)
	assert.Equal(t, 25, status.Progress)

	rec = doRequest(t, srv, http.MethodGet, "/api/files/file-1/url", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fu fileURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fu))
	assert.Equal(t, "https://blob.example/signed/file-1", fu.URL)
	assert.Equal(t, "file-url", svc.lastMethod)
}
