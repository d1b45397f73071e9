package grpc

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

func (s *GRPCServer) PasskeyRegisterOptions(ctx context.Context, req *api.Empty) (*api.CeremonyResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	id, opts, err := s.svc.Passkeys.RegisterOptions(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return s.ceremony(ctx, id, opts)
}

func (s *GRPCServer) PasskeyRegisterVerify(ctx context.Context, req *api.PasskeyRegisterVerifyRequest) (*api.Passkey, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.svc.Passkeys.RegisterVerify(ctx, sess, req.CeremonyID, req.Response, req.WrappedKey, req.DeviceName)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	out := toPasskey(*p)
	return &out, nil
}

func (s *GRPCServer) PasskeyLoginOptions(ctx context.Context, req *api.PasskeyLoginOptionsRequest) (*api.CeremonyResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	id, opts, err := s.svc.Passkeys.LoginOptions(ctx, req.Username)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return s.ceremony(ctx, id, opts)
}

func (s *GRPCServer) PasskeyLoginVerify(ctx context.Context, req *api.PasskeyLoginVerifyRequest) (*api.PasskeyLoginResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	res, err := s.svc.Passkeys.LoginVerify(ctx, req.CeremonyID, req.Response)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.PasskeyLoginResponse{LoginResponse: *toLoginResponse(&res.LoginResult), WrappedKey: res.WrappedKey}, nil
}

func (s *GRPCServer) ListPasskeys(ctx context.Context, req *api.Empty) (*api.ListPasskeysResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.svc.Passkeys.List(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.ListPasskeysResponse{Passkeys: make([]api.Passkey, 0, len(list))}
	for _, p := range list {
		out.Passkeys = append(out.Passkeys, toPasskey(p))
	}
	return out, nil
}

func (s *GRPCServer) RevokePasskey(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Passkeys.Revoke(ctx, sess, req.ID); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) BreachRange(ctx context.Context, req *api.BreachRangeRequest) (*api.BreachRangeResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	entries, err := s.svc.Breach.Range(ctx, req.Prefix)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	out := &api.BreachRangeResponse{Entries: make([]api.BreachEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, api.BreachEntry{Suffix: e.Suffix, Count: e.Count})
	}
	return out, nil
}

func (s *GRPCServer) ceremony(ctx context.Context, id string, opts any) (*api.CeremonyResponse, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.CeremonyResponse{CeremonyID: id, Options: raw}, nil
}

func toPasskey(p models.Passkey) api.Passkey {
	return api.Passkey{ID: p.ID, DeviceName: p.DeviceName, Transports: p.Transports, CreatedAt: p.CreatedAt, LastUsedAt: p.LastUsedAt}
}
