package files

import (
	"context"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
}
