package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	query :=
		`SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		 )`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return ok, nil
}

func (r *PostgresRepository) Participants(ctx context.Context, conversationID string) ([]string, error) {
	query :=
		`SELECT user_id FROM conversation_participants
		 WHERE conversation_id = $1
		 ORDER BY user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	query :=
		`UPDATE conversations
		 SET last_message_id = $2, last_activity_at = $3
		 WHERE id = $1
		 `

	result, err := r.db.ExecContext(ctx, query, conversationID, messageID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
