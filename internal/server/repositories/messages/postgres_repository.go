package messages

import (
	"context"
	"fmt"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, message *models.Message) error {

	query :=
		`INSERT INTO messages (id, conversation_id, sender_id, file_id, type, content)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		message.ID, message.ConversationID, message.SenderID,
		message.FileID, string(message.Type), message.Content,
	).Scan(&message.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
