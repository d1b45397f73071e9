package passkeys

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Passkey) (*models.Passkey, error)
	ListByUser(ctx context.Context, userID string) ([]models.Passkey, error)
	UpdateCounter(ctx context.Context, id string, counter uint32) error
	Delete(ctx context.Context, id, userID string) error
}
