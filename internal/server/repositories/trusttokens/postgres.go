// Package trusttokens stores per-device trust tokens that let a known device
// skip the second factor.
package trusttokens

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

// Upsert stores the token, replacing any previous token for the same device.
func (r *PostgresRepository) Upsert(ctx context.Context, t *models.TrustToken) (*models.TrustToken, error) {
	query :=
		`INSERT INTO trust_tokens (user_id, fingerprint, token, device_name, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, fingerprint)
		 DO UPDATE SET token = EXCLUDED.token, device_name = EXCLUDED.device_name,
		               expires_at = EXCLUDED.expires_at, created_at = now()
		 RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, t.UserID, t.Fingerprint, t.Token, t.DeviceName, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return t, nil
}

func (r *PostgresRepository) Find(ctx context.Context, userID, fingerprint string) (*models.TrustToken, error) {
	query :=
		`SELECT id, user_id, fingerprint, token, device_name, expires_at, created_at
		 FROM trust_tokens
		 WHERE user_id = $1 AND fingerprint = $2`
	t := &models.TrustToken{}
	err := r.db.QueryRowContext(ctx, query, userID, fingerprint).
		Scan(&t.ID, &t.UserID, &t.Fingerprint, &t.Token, &t.DeviceName, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return t, nil
}

// ListByUser returns the user's tokens, newest first. Token values are not
// loaded.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.TrustToken, error) {
	query :=
		`SELECT id, user_id, fingerprint, device_name, expires_at, created_at
		 FROM trust_tokens
		 WHERE user_id = $1
		 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var out []models.TrustToken
	for rows.Next() {
		var t models.TrustToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Fingerprint, &t.DeviceName, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Delete removes one token owned by userID. A token that does not exist or
// belongs to someone else is common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trust_tokens WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trust_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
