package vaults

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Vault) (*models.Vault, error)
	ListByUser(ctx context.Context, userID string) ([]models.Vault, error)
	Get(ctx context.Context, id, userID string) (*models.Vault, error)
}
