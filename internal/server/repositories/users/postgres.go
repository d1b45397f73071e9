// Package users provides the PostgreSQL repository for accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, salt, auth_hash, encrypted_vault_key, recovery_salt,
		 recovery_vault_key, encrypted_recovery_key, two_factor_enabled, two_factor_secret,
		 temp_two_factor_secret, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.UserName, &u.Salt, &u.AuthHash, &u.EncryptedVaultKey, &u.RecoverySalt,
		&u.RecoveryVaultKey, &u.EncryptedRecoveryKey, &u.TwoFactorEnabled, &u.TwoFactorSecret,
		&u.TempTwoFactorSecret, &u.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return u, nil
}

// Create inserts the user. A taken username yields common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, salt, auth_hash, encrypted_vault_key, recovery_salt, recovery_vault_key, encrypted_recovery_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Salt, user.AuthHash, user.EncryptedVaultKey,
		user.RecoverySalt, user.RecoveryVaultKey, user.EncryptedRecoveryKey,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userName))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// UpdatePassword replaces the password-derived fields. An empty
// encryptedRecoveryKey keeps the stored one. Recovery salt and recovery
// vault key are never touched.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, salt, authHash, encryptedVaultKey, encryptedRecoveryKey string) error {
	query :=
		`UPDATE users
		 SET salt = $2, auth_hash = $3, encrypted_vault_key = $4,
		     encrypted_recovery_key = COALESCE(NULLIF($5, ''), encrypted_recovery_key)
		 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, salt, authHash, encryptedVaultKey, encryptedRecoveryKey)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}

func (r *PostgresRepository) SetTempTwoFactorSecret(ctx context.Context, userID, secret string) error {
	query := `UPDATE users SET temp_two_factor_secret = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, secret)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}

// EnableTwoFactor promotes the pending secret and clears it.
func (r *PostgresRepository) EnableTwoFactor(ctx context.Context, userID string) error {
	query :=
		`UPDATE users
		 SET two_factor_enabled = TRUE, two_factor_secret = temp_two_factor_secret, temp_two_factor_secret = ''
		 WHERE id = $1 AND temp_two_factor_secret <> ''`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}

// Delete removes the user; sessions, trust tokens, vaults, items and passkeys
// go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectAffected(res)
}
