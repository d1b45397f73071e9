package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
)

// DefaultVaultIcon is stored when a vault is created without an icon.
const DefaultVaultIcon = "Lock"

// ItemInput is the opaque payload of an item write.
type ItemInput struct {
	EncryptedData string
	IV            string
	BlindIndex    string
}

// VaultService stores sub-vaults and their encrypted items. Ownership is
// always checked through the vault's user id.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService) *VaultService {
	return &VaultService{db: db, repomanager: m, audit: audit}
}

func (s *VaultService) CreateVault(ctx context.Context, sess *models.Session, name, icon, encryptedSubKey, iv string) (*models.Vault, error) {
	if name == "" || encryptedSubKey == "" || iv == "" {
		return nil, fmt.Errorf("%w: missing vault details", common.ErrorValidation)
	}
	if icon == "" {
		icon = DefaultVaultIcon
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Vault, error) {
		v, err := s.repomanager.Vaults(tx).Create(ctx, &models.Vault{
			UserID:          sess.UserID,
			Name:            name,
			Icon:            icon,
			EncryptedSubKey: encryptedSubKey,
			IV:              iv,
		})
		if err != nil {
			return nil, err
		}
		if err := s.audit.record(ctx, tx, sess.UserName, EventVaultCreated, map[string]any{"vaultId": v.ID}); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func (s *VaultService) ListVaults(ctx context.Context, sess *models.Session) ([]models.Vault, error) {
	return s.repomanager.Vaults(s.db).ListByUser(ctx, sess.UserID)
}

// ListItems returns the items of one vault, or of every vault of the user
// when vaultID is empty.
func (s *VaultService) ListItems(ctx context.Context, sess *models.Session, vaultID string) ([]models.Item, error) {
	var (
		items []models.Item
		err   error
	)
	if vaultID == "" {
		items, err = s.repomanager.Items(s.db).ListByUser(ctx, sess.UserID)
	} else {
		if _, err = s.repomanager.Vaults(s.db).Get(ctx, vaultID, sess.UserID); err != nil {
			return nil, err
		}
		items, err = s.repomanager.Items(s.db).ListByVault(ctx, vaultID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, sess.UserName, EventVaultAccess, map[string]any{"itemCount": len(items)}); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateItem rejects a second item with the same blind index in a vault as
// ErrorConflict.
func (s *VaultService) CreateItem(ctx context.Context, sess *models.Session, vaultID string, in ItemInput) (*models.Item, error) {
	if vaultID == "" || in.EncryptedData == "" || in.IV == "" {
		return nil, fmt.Errorf("%w: missing encrypted data", common.ErrorValidation)
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Item, error) {
		if _, err := s.repomanager.Vaults(tx).Get(ctx, vaultID, sess.UserID); err != nil {
			return nil, err
		}
		it, err := s.repomanager.Items(tx).Create(ctx, &models.Item{
			VaultID:       vaultID,
			EncryptedData: in.EncryptedData,
			IV:            in.IV,
			BlindIndex:    in.BlindIndex,
		})
		if err != nil {
			return nil, err
		}
		if err := s.audit.record(ctx, tx, sess.UserName, EventItemCreated, map[string]any{"itemId": it.ID}); err != nil {
			return nil, err
		}
		return it, nil
	})
}

func (s *VaultService) UpdateItem(ctx context.Context, sess *models.Session, id string, in ItemInput) (*models.Item, error) {
	if id == "" || in.EncryptedData == "" || in.IV == "" {
		return nil, fmt.Errorf("%w: missing encrypted data", common.ErrorValidation)
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Item, error) {
		it, err := s.repomanager.Items(tx).Update(ctx, sess.UserID, &models.Item{
			ID:            id,
			EncryptedData: in.EncryptedData,
			IV:            in.IV,
			BlindIndex:    in.BlindIndex,
		})
		if err != nil {
			return nil, err
		}
		if err := s.audit.record(ctx, tx, sess.UserName, EventItemUpdated, map[string]any{"itemId": id}); err != nil {
			return nil, err
		}
		return it, nil
	})
}

func (s *VaultService) DeleteItem(ctx context.Context, sess *models.Session, id string) error {
	if id == "" {
		return fmt.Errorf("%w: item id required", common.ErrorValidation)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Items(tx).Delete(ctx, id, sess.UserID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, sess.UserName, EventItemDeleted, map[string]any{"itemId": id})
	})
}
