package users

import (
	"context"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
