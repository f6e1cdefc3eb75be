package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/uploads"
)

type initRequest struct {
	ConversationID string                    `json:"conversationId"`
	FileName       string                    `json:"fileName"`
	FileType       string                    `json:"fileType"`
	TotalSize      int64                     `json:"totalSize"`
	TotalChunks    int                       `json:"totalChunks"`
	Metadata       models.EncryptionMetadata `json:"metadata"`
}

type initResponse struct {
	UploadID    string `json:"uploadId"`
	TotalChunks int    `json:"totalChunks"`
	ExpiresIn   int    `json:"expiresIn"`
}

type chunkRequest struct {
	UploadID       string `json:"uploadId"`
	ConversationID string `json:"conversationId"`
	ChunkIndex     int    `json:"chunkIndex"`
	ChunkData      string `json:"chunkData"` // base64
}

type chunkResponse struct {
	ChunkID        string `json:"chunkId"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	Progress       int    `json:"progress"`
}

type finalizeRequest struct {
	UploadID string `json:"uploadId"`
}

type finalizeResponse struct {
	FileID         string  `json:"fileId"`
	MessageID      string  `json:"messageId"`
	URL            string  `json:"url"`
	Key            string  `json:"key"`
	Size           int64   `json:"size"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

type streamInitRequest struct {
	ConversationID string `json:"conversationId"`
	FileName       string `json:"fileName"`
	FileType       string `json:"fileType"`
	FileSize       int64  `json:"fileSize"`
	TotalChunks    int    `json:"totalChunks"`
	ThumbnailURL   string `json:"thumbnailUrl"`
}

type streamInitResponse struct {
	UploadID    string   `json:"uploadId"`
	UploadURLs  []string `json:"uploadUrls"`
	TotalChunks int      `json:"totalChunks"`
	ExpiresIn   int      `json:"expiresIn"`
}

type streamFinalizeRequest struct {
	UploadID string                    `json:"uploadId"`
	Parts    []string                  `json:"parts"`
	Metadata models.EncryptionMetadata `json:"metadata"`
	FileName string                    `json:"fileName"`
	FileType string                    `json:"fileType"`
}

type streamFinalizeResponse struct {
	FileID       string                    `json:"fileId"`
	MessageID    string                    `json:"messageId"`
	URL          string                    `json:"url"`
	Key          string                    `json:"key"`
	ThumbnailURL string                    `json:"thumbnailUrl,omitempty"`
	Metadata     models.EncryptionMetadata `json:"metadata"`
}

type statusResponse struct {
	Status         string `json:"status"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	Progress       int    `json:"progress"`
}

type fileURLResponse struct {
	URL string `json:"url"`
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrorBadRequest)
	}
	return nil
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.doInit(w, r, req)
}

func (s *Server) doInit(w http.ResponseWriter, r *http.Request, req initRequest) {
	res, err := s.service.Init(r.Context(), callerID(r.Context()), uploads.InitRequest{
		ConversationID: req.ConversationID,
		FileName:       req.FileName,
		FileType:       req.FileType,
		TotalSize:      req.TotalSize,
		TotalChunks:    req.TotalChunks,
		Metadata:       req.Metadata,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, initResponse{
		UploadID:    res.UploadID,
		TotalChunks: res.TotalChunks,
		ExpiresIn:   s.service.TTLSeconds(),
	})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.doChunk(w, r, req)
}

func (s *Server) doChunk(w http.ResponseWriter, r *http.Request, req chunkRequest) {
	data, err := base64.StdEncoding.DecodeString(req.ChunkData)
	if err != nil {
		s.writeError(r.Context(), w, common.NewFieldError("chunkData"))
		return
	}

	res, err := s.service.SubmitChunk(r.Context(), callerID(r.Context()), req.UploadID, req.ConversationID, req.ChunkIndex, data)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, chunkResponse{
		ChunkID:        res.ChunkID,
		ReceivedChunks: res.ReceivedChunks,
		TotalChunks:    res.TotalChunks,
		Progress:       res.Progress,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.doFinalize(w, r, req)
}

func (s *Server) doFinalize(w http.ResponseWriter, r *http.Request, req finalizeRequest) {
	res, err := s.service.Finalize(r.Context(), callerID(r.Context()), req.UploadID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, finalizeResponse{
		FileID:         res.FileID,
		MessageID:      res.MessageID,
		URL:            res.URL,
		Key:            res.Key,
		Size:           res.Size,
		ElapsedSeconds: res.ElapsedSeconds,
	})
}

func (s *Server) handleInitStreaming(w http.ResponseWriter, r *http.Request) {
	var req streamInitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.doInitStreaming(w, r, req)
}

func (s *Server) doInitStreaming(w http.ResponseWriter, r *http.Request, req streamInitRequest) {
	res, err := s.service.InitStreaming(r.Context(), callerID(r.Context()), uploads.StreamInitRequest{
		ConversationID: req.ConversationID,
		FileName:       req.FileName,
		FileType:       req.FileType,
		FileSize:       req.FileSize,
		TotalChunks:    req.TotalChunks,
		ThumbnailURL:   req.ThumbnailURL,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, streamInitResponse{
		UploadID:    res.UploadID,
		UploadURLs:  res.UploadURLs,
		TotalChunks: res.TotalChunks,
		ExpiresIn:   res.ExpiresIn,
	})
}

func (s *Server) handleFinalizeStreaming(w http.ResponseWriter, r *http.Request) {
	var req streamFinalizeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.doFinalizeStreaming(w, r, req)
}

func (s *Server) doFinalizeStreaming(w http.ResponseWriter, r *http.Request, req streamFinalizeRequest) {
	res, err := s.service.FinalizeStreaming(r.Context(), callerID(r.Context()), req.UploadID, uploads.StreamFinalizeRequest{
		Parts:    req.Parts,
		Metadata: req.Metadata,
		FileName: req.FileName,
		FileType: req.FileType,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, streamFinalizeResponse{
		FileID:       res.FileID,
		MessageID:    res.MessageID,
		URL:          res.URL,
		Key:          res.Key,
		ThumbnailURL: res.ThumbnailURL,
		Metadata:     res.Metadata,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uploadID := mux.Vars(r)["uploadId"]

	res, err := s.service.Status(r.Context(), callerID(r.Context()), uploadID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:         res.State,
		ReceivedChunks: res.ReceivedChunks,
		TotalChunks:    res.TotalChunks,
		Progress:       res.Progress,
	})
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	url, err := s.service.FileURL(r.Context(), callerID(r.Context()), fileID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileURLResponse{URL: url})
}
