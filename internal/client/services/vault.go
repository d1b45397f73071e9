package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/client/client"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/dmitrijs2005/securevault/internal/keyring"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/vault"
)

// DefaultVaultName is created on first use when an account has no vaults.
const DefaultVaultName = "Personal"

// OpenVault is a sub-vault whose key has been unwrapped.
type OpenVault struct {
	Info   api.Vault
	subKey *keyring.Key
	sealer *vault.Sealer
}

// Close wipes the sub-key.
func (o *OpenVault) Close() {
	if o != nil && o.subKey != nil {
		o.subKey.Wipe()
	}
}

// VaultService manages sub-vaults and their items. Items are sealed and
// opened here; the server handles ciphertext only.
type VaultService interface {
	CreateVault(ctx context.Context, s *Session, name, icon string) (*OpenVault, error)
	ListVaults(ctx context.Context) ([]api.Vault, error)
	OpenVault(ctx context.Context, s *Session, v api.Vault) (*OpenVault, error)
	Items(ctx context.Context, ov *OpenVault) ([]vault.Item, error)
	AddItem(ctx context.Context, ov *OpenVault, b vault.Bundle) (vault.Item, error)
	UpdateItem(ctx context.Context, ov *OpenVault, prev vault.Item, next vault.Bundle) (vault.Item, error)
	DeleteItem(ctx context.Context, ov *OpenVault, id string) error
}

type vaultService struct {
	client client.Client
	keys   *keyring.Manager
	logger logging.Logger
	now    func() time.Time
}

func NewVaultService(c client.Client, keys *keyring.Manager, logger logging.Logger) VaultService {
	return &vaultService{client: c, keys: keys, logger: logger.With("module", "vault"), now: time.Now}
}

func (v *vaultService) CreateVault(ctx context.Context, s *Session, name, icon string) (*OpenVault, error) {
	if s == nil || s.Locked() {
		return nil, ErrSessionLocked
	}
	sv, sub, err := v.keys.NewSubVault(s.vaultKey)
	if err != nil {
		return nil, err
	}
	info, err := v.client.CreateVault(ctx, &api.CreateVaultRequest{
		Name:            name,
		Icon:            icon,
		EncryptedSubKey: sv.EncryptedSubKey,
		IV:              sv.IV,
	})
	if err != nil {
		sub.Wipe()
		return nil, err
	}
	return &OpenVault{Info: *info, subKey: sub, sealer: vault.NewSealer(v.keys.Engine(), sub)}, nil
}

func (v *vaultService) ListVaults(ctx context.Context) ([]api.Vault, error) {
	resp, err := v.client.ListVaults(ctx, &api.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Vaults, nil
}

func (v *vaultService) OpenVault(ctx context.Context, s *Session, info api.Vault) (*OpenVault, error) {
	if s == nil || s.Locked() {
		return nil, ErrSessionLocked
	}
	sub, err := v.keys.OpenSubVault(s.vaultKey, keyring.SubVault{EncryptedSubKey: info.EncryptedSubKey, IV: info.IV})
	if err != nil {
		return nil, fmt.Errorf("open vault %q: %w", info.Name, err)
	}
	return &OpenVault{Info: info, subKey: sub, sealer: vault.NewSealer(v.keys.Engine(), sub)}, nil
}

// Items lists and decrypts the vault. Records that fail to decrypt come
// back as corrupt placeholders.
func (v *vaultService) Items(ctx context.Context, ov *OpenVault) ([]vault.Item, error) {
	if err := ov.usable(); err != nil {
		return nil, err
	}
	resp, err := v.client.ListItems(ctx, &api.ListItemsRequest{VaultID: ov.Info.ID})
	if err != nil {
		return nil, err
	}
	records := make([]vault.Record, 0, len(resp.Items))
	for _, it := range resp.Items {
		records = append(records, toRecord(it))
	}
	items := ov.sealer.OpenAll(records)
	for _, it := range items {
		if it.Corrupt {
			v.logger.Warn(ctx, "item failed to decrypt", "id", it.ID)
		}
	}
	return items, nil
}

// AddItem rejects a local duplicate of (site, username) before sealing.
// The blind index lets the server reject duplicates it cannot read.
func (v *vaultService) AddItem(ctx context.Context, ov *OpenVault, b vault.Bundle) (vault.Item, error) {
	existing, err := v.Items(ctx, ov)
	if err != nil {
		return vault.Item{}, err
	}
	if _, dup := vault.FindDuplicate(existing, b.Site, b.Username, ""); dup {
		return vault.Item{}, fmt.Errorf("%w: %s / %s", common.ErrorConflict, b.Site, b.Username)
	}

	b = b.WithRevision(nil, v.now())
	sealed, index, err := v.seal(ov, b)
	if err != nil {
		return vault.Item{}, err
	}
	rec, err := v.client.CreateItem(ctx, &api.CreateItemRequest{
		VaultID:       ov.Info.ID,
		EncryptedData: sealed.Data,
		IV:            sealed.IV,
		BlindIndex:    index,
	})
	if err != nil {
		return vault.Item{}, err
	}
	return vault.Item{ID: rec.ID, VaultID: rec.VaultID, Bundle: b}, nil
}

// UpdateItem re-seals next, carrying prev's password into the history.
func (v *vaultService) UpdateItem(ctx context.Context, ov *OpenVault, prev vault.Item, next vault.Bundle) (vault.Item, error) {
	if prev.Corrupt {
		return vault.Item{}, fmt.Errorf("%w: item cannot be decrypted", common.ErrorDecryption)
	}
	existing, err := v.Items(ctx, ov)
	if err != nil {
		return vault.Item{}, err
	}
	if _, dup := vault.FindDuplicate(existing, next.Site, next.Username, prev.ID); dup {
		return vault.Item{}, fmt.Errorf("%w: %s / %s", common.ErrorConflict, next.Site, next.Username)
	}

	next = next.WithRevision(&prev.Bundle, v.now())
	sealed, index, err := v.seal(ov, next)
	if err != nil {
		return vault.Item{}, err
	}
	rec, err := v.client.UpdateItem(ctx, &api.UpdateItemRequest{
		ID:            prev.ID,
		EncryptedData: sealed.Data,
		IV:            sealed.IV,
		BlindIndex:    index,
	})
	if err != nil {
		return vault.Item{}, err
	}
	return vault.Item{ID: rec.ID, VaultID: rec.VaultID, Bundle: next}, nil
}

func (v *vaultService) DeleteItem(ctx context.Context, ov *OpenVault, id string) error {
	if err := ov.usable(); err != nil {
		return err
	}
	_, err := v.client.DeleteItem(ctx, &api.IDRequest{ID: id})
	return err
}

func (v *vaultService) seal(ov *OpenVault, b vault.Bundle) (cryptox.Sealed, string, error) {
	sealed, err := ov.sealer.Seal(b)
	if err != nil {
		return cryptox.Sealed{}, "", err
	}
	index, err := ov.sealer.BlindIndex(b.Site, b.Username)
	if err != nil {
		return cryptox.Sealed{}, "", err
	}
	return sealed, index, nil
}

func (o *OpenVault) usable() error {
	if o == nil || o.subKey == nil || o.subKey.Wiped() {
		return ErrSessionLocked
	}
	return nil
}

func toRecord(it api.Item) vault.Record {
	return vault.Record{
		ID:            it.ID,
		VaultID:       it.VaultID,
		EncryptedData: it.EncryptedData,
		IV:            it.IV,
		BlindIndex:    it.BlindIndex,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}
