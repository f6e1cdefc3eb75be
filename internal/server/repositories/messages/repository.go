package messages

import (
	"context"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, message *models.Message) error
}
