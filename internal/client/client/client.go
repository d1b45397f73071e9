package client

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"google.golang.org/grpc"
)

// API is the remote vault surface. *api.VaultClient implements it.
type API interface {
	Ping(ctx context.Context, in *api.PingRequest, opts ...grpc.CallOption) (*api.PingResponse, error)
	Register(ctx context.Context, in *api.RegisterRequest, opts ...grpc.CallOption) (*api.RegisterResponse, error)
	GetSalt(ctx context.Context, in *api.GetSaltRequest, opts ...grpc.CallOption) (*api.GetSaltResponse, error)
	Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.LoginResponse, error)
	LoginTwoFactor(ctx context.Context, in *api.LoginTwoFactorRequest, opts ...grpc.CallOption) (*api.LoginResponse, error)
	ResetPassword(ctx context.Context, in *api.ResetPasswordRequest, opts ...grpc.CallOption) (*api.Empty, error)
	DeleteAccount(ctx context.Context, in *api.DeleteAccountRequest, opts ...grpc.CallOption) (*api.Empty, error)
	Logout(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.Empty, error)
	SetupTwoFactor(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.SetupTwoFactorResponse, error)
	EnableTwoFactor(ctx context.Context, in *api.EnableTwoFactorRequest, opts ...grpc.CallOption) (*api.Empty, error)
	SessionStatus(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.SessionStatus, error)
	ReportThreat(ctx context.Context, in *api.ReportThreatRequest, opts ...grpc.CallOption) (*api.SessionStatus, error)
	ListTrustedDevices(ctx context.Context, in *api.ListTrustedDevicesRequest, opts ...grpc.CallOption) (*api.ListTrustedDevicesResponse, error)
	RevokeTrustedDevice(ctx context.Context, in *api.IDRequest, opts ...grpc.CallOption) (*api.Empty, error)
	RevokeAllTrustedDevices(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.RevokeAllResponse, error)
	CreateVault(ctx context.Context, in *api.CreateVaultRequest, opts ...grpc.CallOption) (*api.Vault, error)
	ListVaults(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.ListVaultsResponse, error)
	ListItems(ctx context.Context, in *api.ListItemsRequest, opts ...grpc.CallOption) (*api.ListItemsResponse, error)
	CreateItem(ctx context.Context, in *api.CreateItemRequest, opts ...grpc.CallOption) (*api.Item, error)
	UpdateItem(ctx context.Context, in *api.UpdateItemRequest, opts ...grpc.CallOption) (*api.Item, error)
	DeleteItem(ctx context.Context, in *api.IDRequest, opts ...grpc.CallOption) (*api.Empty, error)
	RecentAudit(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.RecentAuditResponse, error)
	RecordEvent(ctx context.Context, in *api.RecordEventRequest, opts ...grpc.CallOption) (*api.Empty, error)
	PasskeyRegisterOptions(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.CeremonyResponse, error)
	PasskeyRegisterVerify(ctx context.Context, in *api.PasskeyRegisterVerifyRequest, opts ...grpc.CallOption) (*api.Passkey, error)
	PasskeyLoginOptions(ctx context.Context, in *api.PasskeyLoginOptionsRequest, opts ...grpc.CallOption) (*api.CeremonyResponse, error)
	PasskeyLoginVerify(ctx context.Context, in *api.PasskeyLoginVerifyRequest, opts ...grpc.CallOption) (*api.PasskeyLoginResponse, error)
	ListPasskeys(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.ListPasskeysResponse, error)
	RevokePasskey(ctx context.Context, in *api.IDRequest, opts ...grpc.CallOption) (*api.Empty, error)
	BreachRange(ctx context.Context, in *api.BreachRangeRequest, opts ...grpc.CallOption) (*api.BreachRangeResponse, error)
	Export(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.ExportResponse, error)
}

// Client is what the CLI services talk to: the remote API plus the session
// token slot and the breach range lookup.
type Client interface {
	API
	breach.Ranger
	SetSessionToken(token string)
	Healthy(ctx context.Context) error
	Close() error
}

var _ API = (*api.VaultClient)(nil)
