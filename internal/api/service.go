package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "securevault.v1.Vault"

// Method names, also used to build full method paths for interceptors.
const (
	MethodPing                    = "Ping"
	MethodRegister                = "Register"
	MethodGetSalt                 = "GetSalt"
	MethodLogin                   = "Login"
	MethodLoginTwoFactor          = "LoginTwoFactor"
	MethodResetPassword           = "ResetPassword"
	MethodDeleteAccount           = "DeleteAccount"
	MethodLogout                  = "Logout"
	MethodSetupTwoFactor          = "SetupTwoFactor"
	MethodEnableTwoFactor         = "EnableTwoFactor"
	MethodSessionStatus           = "SessionStatus"
	MethodReportThreat            = "ReportThreat"
	MethodListTrustedDevices      = "ListTrustedDevices"
	MethodRevokeTrustedDevice     = "RevokeTrustedDevice"
	MethodRevokeAllTrustedDevices = "RevokeAllTrustedDevices"
	MethodCreateVault             = "CreateVault"
	MethodListVaults              = "ListVaults"
	MethodListItems               = "ListItems"
	MethodCreateItem              = "CreateItem"
	MethodUpdateItem              = "UpdateItem"
	MethodDeleteItem              = "DeleteItem"
	MethodRecentAudit             = "RecentAudit"
	MethodRecordEvent             = "RecordEvent"
	MethodPasskeyRegisterOptions  = "PasskeyRegisterOptions"
	MethodPasskeyRegisterVerify   = "PasskeyRegisterVerify"
	MethodPasskeyLoginOptions     = "PasskeyLoginOptions"
	MethodPasskeyLoginVerify      = "PasskeyLoginVerify"
	MethodListPasskeys            = "ListPasskeys"
	MethodRevokePasskey           = "RevokePasskey"
	MethodBreachRange             = "BreachRange"
	MethodExport                  = "Export"
)

// FullMethod returns the path gRPC reports in UnaryServerInfo.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// VaultServer is the server API for the Vault service.
type VaultServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	LoginTwoFactor(context.Context, *LoginTwoFactorRequest) (*LoginResponse, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*Empty, error)
	DeleteAccount(context.Context, *DeleteAccountRequest) (*Empty, error)
	Logout(context.Context, *Empty) (*Empty, error)
	SetupTwoFactor(context.Context, *Empty) (*SetupTwoFactorResponse, error)
	EnableTwoFactor(context.Context, *EnableTwoFactorRequest) (*Empty, error)
	SessionStatus(context.Context, *Empty) (*SessionStatus, error)
	ReportThreat(context.Context, *ReportThreatRequest) (*SessionStatus, error)
	ListTrustedDevices(context.Context, *ListTrustedDevicesRequest) (*ListTrustedDevicesResponse, error)
	RevokeTrustedDevice(context.Context, *IDRequest) (*Empty, error)
	RevokeAllTrustedDevices(context.Context, *Empty) (*RevokeAllResponse, error)
	CreateVault(context.Context, *CreateVaultRequest) (*Vault, error)
	ListVaults(context.Context, *Empty) (*ListVaultsResponse, error)
	ListItems(context.Context, *ListItemsRequest) (*ListItemsResponse, error)
	CreateItem(context.Context, *CreateItemRequest) (*Item, error)
	UpdateItem(context.Context, *UpdateItemRequest) (*Item, error)
	DeleteItem(context.Context, *IDRequest) (*Empty, error)
	RecentAudit(context.Context, *Empty) (*RecentAuditResponse, error)
	RecordEvent(context.Context, *RecordEventRequest) (*Empty, error)
	PasskeyRegisterOptions(context.Context, *Empty) (*CeremonyResponse, error)
	PasskeyRegisterVerify(context.Context, *PasskeyRegisterVerifyRequest) (*Passkey, error)
	PasskeyLoginOptions(context.Context, *PasskeyLoginOptionsRequest) (*CeremonyResponse, error)
	PasskeyLoginVerify(context.Context, *PasskeyLoginVerifyRequest) (*PasskeyLoginResponse, error)
	ListPasskeys(context.Context, *Empty) (*ListPasskeysResponse, error)
	RevokePasskey(context.Context, *IDRequest) (*Empty, error)
	BreachRange(context.Context, *BreachRangeRequest) (*BreachRangeResponse, error)
	Export(context.Context, *Empty) (*ExportResponse, error)
}

func unary[Req, Resp any](name string, call func(VaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Vault service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, VaultServer.Ping),
		unary(MethodRegister, VaultServer.Register),
		unary(MethodGetSalt, VaultServer.GetSalt),
		unary(MethodLogin, VaultServer.Login),
		unary(MethodLoginTwoFactor, VaultServer.LoginTwoFactor),
		unary(MethodResetPassword, VaultServer.ResetPassword),
		unary(MethodDeleteAccount, VaultServer.DeleteAccount),
		unary(MethodLogout, VaultServer.Logout),
		unary(MethodSetupTwoFactor, VaultServer.SetupTwoFactor),
		unary(MethodEnableTwoFactor, VaultServer.EnableTwoFactor),
		unary(MethodSessionStatus, VaultServer.SessionStatus),
		unary(MethodReportThreat, VaultServer.ReportThreat),
		unary(MethodListTrustedDevices, VaultServer.ListTrustedDevices),
		unary(MethodRevokeTrustedDevice, VaultServer.RevokeTrustedDevice),
		unary(MethodRevokeAllTrustedDevices, VaultServer.RevokeAllTrustedDevices),
		unary(MethodCreateVault, VaultServer.CreateVault),
		unary(MethodListVaults, VaultServer.ListVaults),
		unary(MethodListItems, VaultServer.ListItems),
		unary(MethodCreateItem, VaultServer.CreateItem),
		unary(MethodUpdateItem, VaultServer.UpdateItem),
		unary(MethodDeleteItem, VaultServer.DeleteItem),
		unary(MethodRecentAudit, VaultServer.RecentAudit),
		unary(MethodRecordEvent, VaultServer.RecordEvent),
		unary(MethodPasskeyRegisterOptions, VaultServer.PasskeyRegisterOptions),
		unary(MethodPasskeyRegisterVerify, VaultServer.PasskeyRegisterVerify),
		unary(MethodPasskeyLoginOptions, VaultServer.PasskeyLoginOptions),
		unary(MethodPasskeyLoginVerify, VaultServer.PasskeyLoginVerify),
		unary(MethodListPasskeys, VaultServer.ListPasskeys),
		unary(MethodRevokePasskey, VaultServer.RevokePasskey),
		unary(MethodBreachRange, VaultServer.BreachRange),
		unary(MethodExport, VaultServer.Export),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "securevault/v1/vault",
}

func RegisterVaultServer(s grpc.ServiceRegistrar, srv VaultServer) {
	s.RegisterService(&ServiceDesc, srv)
}
