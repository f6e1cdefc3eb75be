// Package httpapi exposes the upload service over HTTP/JSON. Every route
// sits behind bearer-token authentication; error responses carry a stable
// machine-readable code alongside the human-readable message.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/uploads"
)

// UploadService is the surface the handlers call into. *uploads.Service
// implements it; tests substitute a fake.
type UploadService interface {
	Init(ctx context.Context, ownerID string, req uploads.InitRequest) (*uploads.InitResult, error)
	SubmitChunk(ctx context.Context, callerID, uploadID, conversationID string, index int, data []byte) (*uploads.ChunkProgress, error)
	Finalize(ctx context.Context, callerID, uploadID string) (*uploads.FinalizeResult, error)
	InitStreaming(ctx context.Context, ownerID string, req uploads.StreamInitRequest) (*uploads.StreamInitResult, error)
	FinalizeStreaming(ctx context.Context, callerID, uploadID string, req uploads.StreamFinalizeRequest) (*uploads.StreamFinalizeResult, error)
	Status(ctx context.Context, callerID, uploadID string) (*uploads.StatusResult, error)
	FileURL(ctx context.Context, callerID, fileID string) (string, error)
	TTLSeconds() int
}

// Server hosts the upload API on one HTTP endpoint.
type Server struct {
	address   string
	service   UploadService
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, logger logging.Logger, service UploadService, secretKey string) *Server {
	return &Server{
		address:   address,
		service:   service,
		logger:    logger.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the route table. It is split out of Run so tests can drive
// the full middleware/handler chain through httptest.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/upload", s.handleUploadAction).Methods(http.MethodPost)
	api.HandleFunc("/upload/init", s.handleInit).Methods(http.MethodPost)
	api.HandleFunc("/upload/chunk", s.handleChunk).Methods(http.MethodPost)
	api.HandleFunc("/upload/finalize", s.handleFinalize).Methods(http.MethodPost)
	api.HandleFunc("/upload/init-streaming", s.handleInitStreaming).Methods(http.MethodPost)
	api.HandleFunc("/upload/finalize-streaming", s.handleFinalizeStreaming).Methods(http.MethodPost)
	api.HandleFunc("/upload/{uploadId}/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/files/{fileId}/url", s.handleFileURL).Methods(http.MethodGet)

	return r
}

// Run serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
