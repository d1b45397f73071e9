package auditlogs

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
	Recent(ctx context.Context, username string, limit int) ([]models.AuditEntry, error)
}
