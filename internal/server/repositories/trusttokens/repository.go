package trusttokens

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, t *models.TrustToken) (*models.TrustToken, error)
	Find(ctx context.Context, userID, fingerprint string) (*models.TrustToken, error)
	ListByUser(ctx context.Context, userID string) ([]models.TrustToken, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}
