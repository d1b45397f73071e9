package grpc

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/services"
)

func (s *GRPCServer) CreateVault(ctx context.Context, req *api.CreateVaultRequest) (*api.Vault, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	v, err := s.svc.Vaults.CreateVault(ctx, sess, req.Name, req.Icon, req.EncryptedSubKey, req.IV)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	out := toVault(*v)
	return &out, nil
}

func (s *GRPCServer) ListVaults(ctx context.Context, req *api.Empty) (*api.ListVaultsResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.svc.Vaults.ListVaults(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.ListVaultsResponse{Vaults: make([]api.Vault, 0, len(list))}
	for _, v := range list {
		out.Vaults = append(out.Vaults, toVault(v))
	}
	return out, nil
}

func (s *GRPCServer) ListItems(ctx context.Context, req *api.ListItemsRequest) (*api.ListItemsResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.svc.Vaults.ListItems(ctx, sess, req.VaultID)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.ListItemsResponse{Items: make([]api.Item, 0, len(list))}
	for _, it := range list {
		out.Items = append(out.Items, toItem(it))
	}
	return out, nil
}

func (s *GRPCServer) CreateItem(ctx context.Context, req *api.CreateItemRequest) (*api.Item, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	it, err := s.svc.Vaults.CreateItem(ctx, sess, req.VaultID, services.ItemInput{
		EncryptedData: req.EncryptedData,
		IV:            req.IV,
		BlindIndex:    req.BlindIndex,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	out := toItem(*it)
	return &out, nil
}

func (s *GRPCServer) UpdateItem(ctx context.Context, req *api.UpdateItemRequest) (*api.Item, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	it, err := s.svc.Vaults.UpdateItem(ctx, sess, req.ID, services.ItemInput{
		EncryptedData: req.EncryptedData,
		IV:            req.IV,
		BlindIndex:    req.BlindIndex,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	out := toItem(*it)
	return &out, nil
}

func (s *GRPCServer) DeleteItem(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Vaults.DeleteItem(ctx, sess, req.ID); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) Export(ctx context.Context, req *api.Empty) (*api.ExportResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.svc.Backup.Export(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Vault exported", "username", sess.UserName, "key", e.Key)
	return &api.ExportResponse{Key: e.Key, URL: e.URL, ExpiresAt: e.ExpiresAt, Vaults: e.Vaults, Items: e.Items}, nil
}

func toVault(v models.Vault) api.Vault {
	return api.Vault{ID: v.ID, Name: v.Name, Icon: v.Icon, EncryptedSubKey: v.EncryptedSubKey, IV: v.IV, CreatedAt: v.CreatedAt}
}

func toItem(it models.Item) api.Item {
	return api.Item{
		ID:            it.ID,
		VaultID:       it.VaultID,
		EncryptedData: it.EncryptedData,
		IV:            it.IV,
		BlindIndex:    it.BlindIndex,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}
