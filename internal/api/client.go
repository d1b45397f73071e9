package api

import (
	"context"

	"google.golang.org/grpc"
)

// VaultClient calls the Vault service over a connection. Every call is made
// with the JSON content subtype.
type VaultClient struct {
	cc grpc.ClientConnInterface
}

func NewVaultClient(cc grpc.ClientConnInterface) *VaultClient {
	return &VaultClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VaultClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *VaultClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *VaultClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, MethodGetSalt, in, opts)
}

func (c *VaultClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *VaultClient) LoginTwoFactor(ctx context.Context, in *LoginTwoFactorRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLoginTwoFactor, in, opts)
}

func (c *VaultClient) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodResetPassword, in, opts)
}

func (c *VaultClient) DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodDeleteAccount, in, opts)
}

func (c *VaultClient) Logout(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodLogout, in, opts)
}

func (c *VaultClient) SetupTwoFactor(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SetupTwoFactorResponse, error) {
	return invoke[SetupTwoFactorResponse](ctx, c.cc, MethodSetupTwoFactor, in, opts)
}

func (c *VaultClient) EnableTwoFactor(ctx context.Context, in *EnableTwoFactorRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodEnableTwoFactor, in, opts)
}

func (c *VaultClient) SessionStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SessionStatus, error) {
	return invoke[SessionStatus](ctx, c.cc, MethodSessionStatus, in, opts)
}

func (c *VaultClient) ReportThreat(ctx context.Context, in *ReportThreatRequest, opts ...grpc.CallOption) (*SessionStatus, error) {
	return invoke[SessionStatus](ctx, c.cc, MethodReportThreat, in, opts)
}

func (c *VaultClient) ListTrustedDevices(ctx context.Context, in *ListTrustedDevicesRequest, opts ...grpc.CallOption) (*ListTrustedDevicesResponse, error) {
	return invoke[ListTrustedDevicesResponse](ctx, c.cc, MethodListTrustedDevices, in, opts)
}

func (c *VaultClient) RevokeTrustedDevice(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRevokeTrustedDevice, in, opts)
}

func (c *VaultClient) RevokeAllTrustedDevices(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*RevokeAllResponse, error) {
	return invoke[RevokeAllResponse](ctx, c.cc, MethodRevokeAllTrustedDevices, in, opts)
}

func (c *VaultClient) CreateVault(ctx context.Context, in *CreateVaultRequest, opts ...grpc.CallOption) (*Vault, error) {
	return invoke[Vault](ctx, c.cc, MethodCreateVault, in, opts)
}

func (c *VaultClient) ListVaults(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListVaultsResponse, error) {
	return invoke[ListVaultsResponse](ctx, c.cc, MethodListVaults, in, opts)
}

func (c *VaultClient) ListItems(ctx context.Context, in *ListItemsRequest, opts ...grpc.CallOption) (*ListItemsResponse, error) {
	return invoke[ListItemsResponse](ctx, c.cc, MethodListItems, in, opts)
}

func (c *VaultClient) CreateItem(ctx context.Context, in *CreateItemRequest, opts ...grpc.CallOption) (*Item, error) {
	return invoke[Item](ctx, c.cc, MethodCreateItem, in, opts)
}

func (c *VaultClient) UpdateItem(ctx context.Context, in *UpdateItemRequest, opts ...grpc.CallOption) (*Item, error) {
	return invoke[Item](ctx, c.cc, MethodUpdateItem, in, opts)
}

func (c *VaultClient) DeleteItem(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodDeleteItem, in, opts)
}

func (c *VaultClient) RecentAudit(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*RecentAuditResponse, error) {
	return invoke[RecentAuditResponse](ctx, c.cc, MethodRecentAudit, in, opts)
}

func (c *VaultClient) RecordEvent(ctx context.Context, in *RecordEventRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRecordEvent, in, opts)
}

func (c *VaultClient) PasskeyRegisterOptions(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*CeremonyResponse, error) {
	return invoke[CeremonyResponse](ctx, c.cc, MethodPasskeyRegisterOptions, in, opts)
}

func (c *VaultClient) PasskeyRegisterVerify(ctx context.Context, in *PasskeyRegisterVerifyRequest, opts ...grpc.CallOption) (*Passkey, error) {
	return invoke[Passkey](ctx, c.cc, MethodPasskeyRegisterVerify, in, opts)
}

func (c *VaultClient) PasskeyLoginOptions(ctx context.Context, in *PasskeyLoginOptionsRequest, opts ...grpc.CallOption) (*CeremonyResponse, error) {
	return invoke[CeremonyResponse](ctx, c.cc, MethodPasskeyLoginOptions, in, opts)
}

func (c *VaultClient) PasskeyLoginVerify(ctx context.Context, in *PasskeyLoginVerifyRequest, opts ...grpc.CallOption) (*PasskeyLoginResponse, error) {
	return invoke[PasskeyLoginResponse](ctx, c.cc, MethodPasskeyLoginVerify, in, opts)
}

func (c *VaultClient) ListPasskeys(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListPasskeysResponse, error) {
	return invoke[ListPasskeysResponse](ctx, c.cc, MethodListPasskeys, in, opts)
}

func (c *VaultClient) RevokePasskey(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRevokePasskey, in, opts)
}

func (c *VaultClient) BreachRange(ctx context.Context, in *BreachRangeRequest, opts ...grpc.CallOption) (*BreachRangeResponse, error) {
	return invoke[BreachRangeResponse](ctx, c.cc, MethodBreachRange, in, opts)
}

func (c *VaultClient) Export(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ExportResponse, error) {
	return invoke[ExportResponse](ctx, c.cc, MethodExport, in, opts)
}
