package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const sessionKey ctxKey = "session"

// publicMethods can be called without a session token.
var publicMethods = map[string]bool{
	api.FullMethod(api.MethodPing):                true,
	api.FullMethod(api.MethodRegister):            true,
	api.FullMethod(api.MethodGetSalt):             true,
	api.FullMethod(api.MethodLogin):               true,
	api.FullMethod(api.MethodLoginTwoFactor):      true,
	api.FullMethod(api.MethodResetPassword):       true,
	api.FullMethod(api.MethodPasskeyLoginOptions): true,
	api.FullMethod(api.MethodPasskeyLoginVerify):  true,
}

// throttledMethods check credentials and are rate limited per caller.
var throttledMethods = map[string]bool{
	api.FullMethod(api.MethodLogin):              true,
	api.FullMethod(api.MethodLoginTwoFactor):     true,
	api.FullMethod(api.MethodResetPassword):      true,
	api.FullMethod(api.MethodDeleteAccount):      true,
	api.FullMethod(api.MethodPasskeyLoginVerify): true,
}

// lockedMethods are refused once a session is locked down.
var lockedMethods = map[string]bool{
	api.FullMethod(api.MethodCreateVault):            true,
	api.FullMethod(api.MethodCreateItem):             true,
	api.FullMethod(api.MethodUpdateItem):             true,
	api.FullMethod(api.MethodDeleteItem):             true,
	api.FullMethod(api.MethodExport):                 true,
	api.FullMethod(api.MethodSetupTwoFactor):         true,
	api.FullMethod(api.MethodEnableTwoFactor):        true,
	api.FullMethod(api.MethodPasskeyRegisterOptions): true,
	api.FullMethod(api.MethodPasskeyRegisterVerify):  true,
}

func withSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func sessionFromContext(ctx context.Context) (*models.Session, error) {
	sess, ok := ctx.Value(sessionKey).(*models.Session)
	if !ok || sess == nil {
		return nil, status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	}
	return sess, nil
}

func tokenFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.SessionTokenHeaderName)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !throttledMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var addr string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
	}
	key := info.FullMethod + "|" + addr + "|" + requestUsername(req)

	if !s.limiter.Allow(key) {
		s.logger.Warn(ctx, "rate limit exceeded", "method", info.FullMethod, "peer", addr)
		return nil, status.Error(codes.ResourceExhausted, "too many attempts")
	}
	return handler(ctx, req)
}

func requestUsername(req any) string {
	switch r := req.(type) {
	case *api.LoginRequest:
		return r.Username
	case *api.LoginTwoFactorRequest:
		return r.Username
	case *api.ResetPasswordRequest:
		return r.Username
	case *api.DeleteAccountRequest:
		return r.Username
	}
	return ""
}

func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := tokenFromMetadata(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	sess, err := s.svc.Sessions.Authenticate(ctx, token)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return handler(withSession(ctx, sess), req)
}

func (s *GRPCServer) lockdownInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !lockedMethods[info.FullMethod] {
		return handler(ctx, req)
	}
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if sess.IsLockedDown {
		s.logger.Warn(ctx, "locked down session refused", "method", info.FullMethod, "user", sess.UserName)
		return nil, status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	}
	return handler(ctx, req)
}
