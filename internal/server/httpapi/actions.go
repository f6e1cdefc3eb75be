package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
)

// The combined endpoint accepts one JSON body whose "action" field selects
// the operation. The action set is closed: decoding produces one of the
// variants below and nothing else, so dispatch is an exhaustive switch
// rather than a string comparison scattered across handlers.

type uploadAction interface {
	isUploadAction()
}

type initAction struct{ initRequest }
type chunkAction struct{ chunkRequest }
type finalizeAction struct{ finalizeRequest }
type initStreamingAction struct{ streamInitRequest }
type finalizeStreamingAction struct{ streamFinalizeRequest }

func (initAction) isUploadAction()              {}
func (chunkAction) isUploadAction()             {}
func (finalizeAction) isUploadAction()          {}
func (initStreamingAction) isUploadAction()     {}
func (finalizeStreamingAction) isUploadAction() {}

// decodeAction reads the tag, then unmarshals the body into the matching
// variant. An unknown tag is a client error naming the field.
func decodeAction(body []byte) (uploadAction, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed request body", common.ErrorBadRequest)
	}

	var (
		action uploadAction
		err    error
	)

	switch envelope.Action {
	case "init":
		var a initAction
		err = json.Unmarshal(body, &a.initRequest)
		action = a
	case "chunk":
		var a chunkAction
		err = json.Unmarshal(body, &a.chunkRequest)
		action = a
	case "finalize":
		var a finalizeAction
		err = json.Unmarshal(body, &a.finalizeRequest)
		action = a
	case "init-streaming":
		var a initStreamingAction
		err = json.Unmarshal(body, &a.streamInitRequest)
		action = a
	case "finalize-streaming":
		var a finalizeStreamingAction
		err = json.Unmarshal(body, &a.streamFinalizeRequest)
		action = a
	case "":
		return nil, common.NewFieldError("action")
	default:
		return nil, fmt.Errorf("%w: unknown action %q", common.ErrorBadRequest, envelope.Action)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: malformed request body", common.ErrorBadRequest)
	}
	return action, nil
}

func (s *Server) handleUploadAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: unreadable request body", common.ErrorBadRequest))
		return
	}

	action, err := decodeAction(body)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.dispatchUploadAction(w, r, action)
}

func (s *Server) dispatchUploadAction(w http.ResponseWriter, r *http.Request, action uploadAction) {
	switch a := action.(type) {
	case initAction:
		s.doInit(w, r, a.initRequest)
	case chunkAction:
		s.doChunk(w, r, a.chunkRequest)
	case finalizeAction:
		s.doFinalize(w, r, a.finalizeRequest)
	case initStreamingAction:
		s.doInitStreaming(w, r, a.streamInitRequest)
	case finalizeStreamingAction:
		s.doFinalizeStreaming(w, r, a.streamFinalizeRequest)
	default:
		// decodeAction and this switch must cover the same variant set; a
		// variant reaching here means one of them was extended without the
		// other.
		s.writeError(r.Context(), w, fmt.Errorf("%w: unhandled action variant %T", common.ErrorInternal, a))
	}
}
