// Package auditlogs is the append-only store of security events.
package auditlogs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e *models.AuditEntry) error {
	var meta any
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = b
	}
	query :=
		`INSERT INTO audit_logs (username, event, metadata)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, e.UserName, e.Event, meta).Scan(&e.ID, &e.CreatedAt); err != nil {
		return dbx.MapError(err)
	}
	return nil
}

// Recent returns up to limit entries for username, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, username string, limit int) ([]models.AuditEntry, error) {
	query :=
		`SELECT id, username, event, metadata, created_at
		 FROM audit_logs
		 WHERE username = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.UserName, &e.Event, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("db error: bad metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
