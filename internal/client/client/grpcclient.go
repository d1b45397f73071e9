package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCClient is the Client implementation over a gRPC connection. The
// session token is attached to every call once set. Calls without a
// deadline get the configured request timeout.
type GRPCClient struct {
	*api.VaultClient

	endpointURL string
	conn        *grpc.ClientConn
	timeout     time.Duration

	mu    sync.RWMutex
	token string
}

var _ Client = (*GRPCClient)(nil)

func withSessionToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.SessionTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// NewGRPCClient dials endpointURL with insecure transport credentials. Extra
// dial options are appended, which lets tests substitute a bufconn dialer.
func NewGRPCClient(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(c.errorInterceptor, c.deadlineInterceptor, c.sessionTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.VaultClient = api.NewVaultClient(conn)
	return c, nil
}

// SetSessionToken replaces the token sent with later calls. An empty token
// sends none.
func (c *GRPCClient) SetSessionToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *GRPCClient) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *GRPCClient) sessionTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if t := c.sessionToken(); t != "" {
		ctx = withSessionToken(ctx, t)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) deadlineInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) errorInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return mapError(invoker(ctx, method, req, reply, cc, opts...))
}

// Range looks up breach counts for a digest prefix through the server
// proxy, so GRPCClient can stand in for a direct breach.Client.
func (c *GRPCClient) Range(ctx context.Context, prefix string) ([]breach.Entry, error) {
	resp, err := c.BreachRange(ctx, &api.BreachRangeRequest{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	out := make([]breach.Entry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		out = append(out, breach.Entry{Suffix: e.Suffix, Count: e.Count})
	}
	return out, nil
}

// Healthy reports whether the server answers a ping.
func (c *GRPCClient) Healthy(ctx context.Context) error {
	resp, err := c.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// mapError turns status errors back into the shared sentinels so callers
// can use errors.Is.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrorUnauthorized
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.AlreadyExists:
		return common.ErrorConflict
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.Unavailable, codes.DeadlineExceeded:
		if st.Message() == common.ErrorUpstream.Error() {
			return common.ErrorUpstream
		}
		return ErrUnavailable
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
