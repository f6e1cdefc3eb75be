package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authMiddleware verifies the bearer token and stashes the authenticated
// user id in the request context. Requests without a valid token never
// reach a handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(r.Context(), w, common.ErrorUnauthorized)
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(r.Context(), w, common.ErrorUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the user id placed in the context by authMiddleware.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
