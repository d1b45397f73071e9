package items

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, it *models.Item) (*models.Item, error)
	ListByVault(ctx context.Context, vaultID string) ([]models.Item, error)
	ListByUser(ctx context.Context, userID string) ([]models.Item, error)
	Update(ctx context.Context, userID string, it *models.Item) (*models.Item, error)
	Delete(ctx context.Context, id, userID string) error
}
