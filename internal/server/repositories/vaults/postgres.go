// Package vaults stores vault rows: a name, an icon and the sub-key wrapped
// under the owner's vault key.
package vaults

import (
	"context"
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

// Create inserts v. A duplicate name for the same user is common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, v *models.Vault) (*models.Vault, error) {
	query :=
		`INSERT INTO vaults (user_id, name, icon, encrypted_sub_key, iv)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, v.UserID, v.Name, v.Icon, v.EncryptedSubKey, v.IV).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return v, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Vault, error) {
	query :=
		`SELECT id, user_id, name, icon, encrypted_sub_key, iv, created_at
		 FROM vaults
		 WHERE user_id = $1
		 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var out []models.Vault
	for rows.Next() {
		var v models.Vault
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Icon, &v.EncryptedSubKey, &v.IV, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Get returns the vault only if userID owns it.
func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.Vault, error) {
	query :=
		`SELECT id, user_id, name, icon, encrypted_sub_key, iv, created_at
		 FROM vaults
		 WHERE id = $1 AND user_id = $2`
	v := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&v.ID, &v.UserID, &v.Name, &v.Icon, &v.EncryptedSubKey, &v.IV, &v.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return v, nil
}
