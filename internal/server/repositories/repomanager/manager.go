package repomanager

import (
	"context"
	"database/sql"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/conversations"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/files"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/messages"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Messages(db dbx.DBTX) messages.Repository
	Conversations(db dbx.DBTX) conversations.Repository
}
