// Package passkeys stores registered WebAuthn credentials together with the
// vault key wrapped under the authenticator's PRF output.
package passkeys

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Passkey) (*models.Passkey, error) {
	query :=
		`INSERT INTO passkeys (user_id, credential_id, public_key, aaguid, counter, transports,
		                       device_name, wrapped_key, backup_eligible, backup_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.CredentialID, p.PublicKey, p.AAGUID, int64(p.Counter), strings.Join(p.Transports, ","),
		p.DeviceName, p.WrappedKey, p.BackupEligible, p.BackupState,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Passkey, error) {
	query :=
		`SELECT id, user_id, credential_id, public_key, aaguid, counter, transports, device_name,
		        wrapped_key, backup_eligible, backup_state, created_at, last_used_at
		 FROM passkeys
		 WHERE user_id = $1
		 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var out []models.Passkey
	for rows.Next() {
		var (
			p          models.Passkey
			counter    int64
			transports string
			lastUsed   sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.CredentialID, &p.PublicKey, &p.AAGUID, &counter, &transports,
			&p.DeviceName, &p.WrappedKey, &p.BackupEligible, &p.BackupState, &p.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Counter = uint32(counter)
		if transports != "" {
			p.Transports = strings.Split(transports, ",")
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			p.LastUsedAt = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// UpdateCounter stores the authenticator's latest signature counter.
func (r *PostgresRepository) UpdateCounter(ctx context.Context, id string, counter uint32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE passkeys SET counter = $2, last_used_at = now() WHERE id = $1`, id, int64(counter))
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM passkeys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}
