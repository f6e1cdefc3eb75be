package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
)

// errorBody is the wire shape of every failed response.
type errorBody struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Fields []string `json:"fields,omitempty"`

	// Incomplete-upload detail.
	Received *int `json:"received,omitempty"`
	Total    *int `json:"total,omitempty"`
	Missing  *int `json:"missing,omitempty"`

	// Storage-failure detail: "timeout" or "rejected".
	Subcode string `json:"subcode,omitempty"`
}

// writeError translates a service error into a status code and JSON body.
// Unclassified errors are reported as internal without leaking detail.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: "internal error", Code: "internal"}

	var fieldErr *common.FieldError
	var incomplete *common.IncompleteUploadError
	var backendErr *storage.BackendError

	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		status = http.StatusUnauthorized
		body = errorBody{Error: "unauthorized", Code: "unauthorized"}

	case errors.Is(err, common.ErrorForbidden):
		status = http.StatusForbidden
		body = errorBody{Error: "forbidden", Code: "forbidden"}

	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
		body = errorBody{Error: "not found", Code: "not_found"}

	case errors.Is(err, common.ErrorConflict):
		status = http.StatusConflict
		body = errorBody{Error: err.Error(), Code: "conflict"}

	case errors.As(err, &incomplete):
		status = http.StatusBadRequest
		received, total, missing := incomplete.Received, incomplete.Total, incomplete.Missing()
		body = errorBody{
			Error:    incomplete.Error(),
			Code:     "incomplete_upload",
			Received: &received,
			Total:    &total,
			Missing:  &missing,
		}

	case errors.As(err, &fieldErr):
		status = http.StatusBadRequest
		body = errorBody{Error: fieldErr.Error(), Code: "bad_request", Fields: fieldErr.Fields}

	case errors.Is(err, common.ErrorBadRequest):
		status = http.StatusBadRequest
		body = errorBody{Error: err.Error(), Code: "bad_request"}

	case errors.As(err, &backendErr):
		status = http.StatusInternalServerError
		body = errorBody{Error: "storage failure", Code: "backend_failure", Subcode: string(backendErr.Kind)}

	default:
		s.logger.Error(ctx, "unclassified handler error", "error", err)
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
