// Package items stores encrypted vault items. Ownership is resolved through
// the owning vault's user_id.
package items

import (
	"context"
	"database/sql"
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

// Create inserts it. A blind index already present in the vault is
// common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, it *models.Item) (*models.Item, error) {
	query :=
		`INSERT INTO items (vault_id, encrypted_data, iv, blind_index)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, it.VaultID, it.EncryptedData, it.IV, it.BlindIndex).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return it, nil
}

func (r *PostgresRepository) ListByVault(ctx context.Context, vaultID string) ([]models.Item, error) {
	query :=
		`SELECT id, vault_id, encrypted_data, iv, blind_index, created_at, updated_at
		 FROM items
		 WHERE vault_id = $1
		 ORDER BY created_at`
	return r.list(ctx, query, vaultID)
}

// ListByUser returns every item across the user's vaults.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Item, error) {
	query :=
		`SELECT i.id, i.vault_id, i.encrypted_data, i.iv, i.blind_index, i.created_at, i.updated_at
		 FROM items i JOIN vaults v ON v.id = i.vault_id
		 WHERE v.user_id = $1
		 ORDER BY i.created_at`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg string) ([]models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		var it models.Item
		var bi sql.NullString
		if err := rows.Scan(&it.ID, &it.VaultID, &it.EncryptedData, &it.IV, &bi, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		it.BlindIndex = bi.String
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Update replaces the ciphertext of an item owned by userID.
func (r *PostgresRepository) Update(ctx context.Context, userID string, it *models.Item) (*models.Item, error) {
	query :=
		`UPDATE items i
		 SET encrypted_data = $3, iv = $4, blind_index = NULLIF($5, ''), updated_at = now()
		 FROM vaults v
		 WHERE i.id = $1 AND v.id = i.vault_id AND v.user_id = $2
		 RETURNING i.vault_id, i.created_at, i.updated_at`
	err := r.db.QueryRowContext(ctx, query, it.ID, userID, it.EncryptedData, it.IV, it.BlindIndex).
		Scan(&it.VaultID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return it, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	query :=
		`DELETE FROM items i
		 USING vaults v
		 WHERE i.id = $1 AND v.id = i.vault_id AND v.user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}
