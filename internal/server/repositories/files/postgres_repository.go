package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/dbx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {

	meta, err := json.Marshal(file.Encryption)
	if err != nil {
		return fmt.Errorf("marshal encryption metadata: %w", err)
	}

	query :=
		`INSERT INTO files (id, owner_id, conversation_id, name, mime_type, size_bytes, storage_key, storage_url, encryption)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		file.ID, file.OwnerID, file.ConversationID, file.Name, file.MimeType,
		file.SizeBytes, file.StorageKey, file.StorageURL, meta,
	).Scan(&file.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query :=
		`SELECT id, owner_id, conversation_id, name, mime_type, size_bytes, storage_key, storage_url, encryption, created_at
		 FROM files
		 WHERE id = $1
		 `

	file := &models.File{}
	var meta []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&file.ID, &file.OwnerID, &file.ConversationID, &file.Name, &file.MimeType,
		&file.SizeBytes, &file.StorageKey, &file.StorageURL, &meta, &file.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(meta, &file.Encryption); err != nil {
		return nil, fmt.Errorf("unmarshal encryption metadata: %w", err)
	}

	return file, nil
}
