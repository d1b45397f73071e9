package grpc

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/buildinfo"
	"github.com/dmitrijs2005/securevault/internal/server/services"
)

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK", Version: buildinfo.Version}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	u, err := s.svc.Auth.Register(ctx, services.RegisterInput{
		UserName:             req.Username,
		Salt:                 req.Salt,
		AuthHash:             req.AuthHash,
		EncryptedVaultKey:    req.EncryptedVaultKey,
		RecoverySalt:         req.RecoverySalt,
		RecoveryVaultKey:     req.RecoveryVaultKey,
		EncryptedRecoveryKey: req.EncryptedRecoveryKey,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username)
	return &api.RegisterResponse{UserID: u.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *api.GetSaltRequest) (*api.GetSaltResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	info, err := s.svc.Auth.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &api.GetSaltResponse{
		Salt:                 info.Salt,
		RecoverySalt:         info.RecoverySalt,
		RecoveryVaultKey:     info.RecoveryVaultKey,
		EncryptedVaultKey:    info.EncryptedVaultKey,
		EncryptedRecoveryKey: info.EncryptedRecoveryKey,
	}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	res, err := s.svc.Auth.Login(ctx, services.LoginInput{
		UserName:    req.Username,
		AuthHash:    req.AuthHash,
		Fingerprint: req.Fingerprint,
		TrustToken:  req.TrustToken,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return toLoginResponse(res), nil
}

func (s *GRPCServer) LoginTwoFactor(ctx context.Context, req *api.LoginTwoFactorRequest) (*api.LoginResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	res, err := s.svc.Auth.LoginTwoFactor(ctx, services.TwoFactorLoginInput{
		UserName:    req.Username,
		Code:        req.Code,
		AuthHash:    req.AuthHash,
		Fingerprint: req.Fingerprint,
		TrustDevice: req.TrustDevice,
		DeviceName:  req.DeviceName,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return toLoginResponse(res), nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *api.ResetPasswordRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	err := s.svc.Auth.ResetPassword(ctx, services.ResetInput{
		UserName:             req.Username,
		Salt:                 req.Salt,
		AuthHash:             req.AuthHash,
		EncryptedVaultKey:    req.EncryptedVaultKey,
		EncryptedRecoveryKey: req.EncryptedRecoveryKey,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Password reset", "username", req.Username)
	return &api.Empty{}, nil
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, req *api.DeleteAccountRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Auth.DeleteAccount(ctx, sess, req.Username, req.AuthHash, req.Code); err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Account deleted", "username", req.Username)
	return &api.Empty{}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.Empty) (*api.Empty, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Auth.Logout(ctx, sess); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) SetupTwoFactor(ctx context.Context, req *api.Empty) (*api.SetupTwoFactorResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.svc.TwoFactor.Setup(ctx, sess)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &api.SetupTwoFactorResponse{Secret: e.Secret, URI: e.URI, QRCode: e.QRPNG}, nil
}

func (s *GRPCServer) EnableTwoFactor(ctx context.Context, req *api.EnableTwoFactorRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.TwoFactor.Enable(ctx, sess, req.Code); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &api.Empty{}, nil
}

func toLoginResponse(res *services.LoginResult) *api.LoginResponse {
	out := &api.LoginResponse{
		TwoFactorRequired:    res.TwoFactorRequired,
		Username:             res.UserName,
		EncryptedVaultKey:    res.EncryptedVaultKey,
		EncryptedRecoveryKey: res.EncryptedRecoveryKey,
		TwoFactorEnabled:     res.TwoFactorEnabled,
		TrustToken:           res.TrustToken,
	}
	if res.Session != nil {
		out.SessionToken = res.Session.Token
		out.ExpiresAt = res.Session.ExpiresAt
	}
	return out
}
