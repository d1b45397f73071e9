package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/buildinfo"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address  string
	svc      Services
	logger   logging.Logger
	validate *validator.Validate
	limiter  *keyedLimiter
}

var _ api.VaultServer = (*GRPCServer)(nil)

// NewGRPCServer builds the server. loginRate and loginBurst throttle the
// credential-checking methods per caller.
func NewGRPCServer(a string, l logging.Logger, svc Services, loginRate float64, loginBurst int) *GRPCServer {
	return &GRPCServer{
		address:  a,
		svc:      svc,
		logger:   l.With("module", "grpc_server"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  newKeyedLimiter(rate.Limit(loginRate), loginBurst),
	}
}

// NewServer returns a grpc.Server with the interceptor chain and the Vault
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		s.loggingInterceptor,
		s.rateLimitInterceptor,
		s.sessionInterceptor,
		s.lockdownInterceptor,
	))
	srv := grpc.NewServer(opts...)
	api.RegisterVaultServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address, "version", buildinfo.Version)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
