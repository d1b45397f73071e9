package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeServer implements only the methods the tests call.
type fakeServer struct {
	api.VaultServer

	mu          sync.Mutex
	tokens      []string
	hadDeadline bool
	loginErr    error
}

func (f *fakeServer) Ping(ctx context.Context, _ *api.PingRequest) (*api.PingResponse, error) {
	_, ok := ctx.Deadline()
	f.mu.Lock()
	f.hadDeadline = ok
	f.mu.Unlock()
	return &api.PingResponse{Status: "OK"}, nil
}

func (f *fakeServer) SessionStatus(ctx context.Context, _ *api.Empty) (*api.SessionStatus, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.mu.Lock()
	f.tokens = append(f.tokens, md.Get(common.SessionTokenHeaderName)...)
	f.mu.Unlock()
	return &api.SessionStatus{ThreatLevel: 1}, nil
}

func (f *fakeServer) Login(context.Context, *api.LoginRequest) (*api.LoginResponse, error) {
	return nil, f.loginErr
}

func (f *fakeServer) BreachRange(_ context.Context, in *api.BreachRangeRequest) (*api.BreachRangeResponse, error) {
	if in.Prefix != "5BAA6" {
		return nil, status.Error(codes.InvalidArgument, "bad prefix")
	}
	return &api.BreachRangeResponse{Entries: []api.BreachEntry{
		{Suffix: "1E4C9B93F3F0682250B6CF8331B7EE68FD8", Count: 42},
	}}, nil
}

func newTestClient(t *testing.T, srv *fakeServer) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	api.RegisterVaultServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", 5*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_AttachesSessionTokenOnceSet(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.SessionStatus(ctx, &api.Empty{})
	require.NoError(t, err)

	c.SetSessionToken("tok-1")
	_, err = c.SessionStatus(ctx, &api.Empty{})
	require.NoError(t, err)

	c.SetSessionToken("")
	_, err = c.SessionStatus(ctx, &api.Empty{})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"tok-1"}, srv.tokens)
}

func TestGRPCClient_AppliesDefaultDeadline(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)

	require.NoError(t, c.Healthy(context.Background()))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.True(t, srv.hadDeadline)
}

func TestGRPCClient_MapsStatusToSentinel(t *testing.T) {
	srv := &fakeServer{loginErr: status.Error(codes.Unauthenticated, "invalid credentials")}
	c := newTestClient(t, srv)

	_, err := c.Login(context.Background(), &api.LoginRequest{Username: "alice", AuthHash: "h"})
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	srv.loginErr = status.Error(codes.ResourceExhausted, "too many attempts")
	_, err = c.Login(context.Background(), &api.LoginRequest{Username: "alice", AuthHash: "h"})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestGRPCClient_RangeSatisfiesRanger(t *testing.T) {
	c := newTestClient(t, &fakeServer{})

	var r breach.Ranger = c
	entries, err := r.Range(context.Background(), "5BAA6")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 42, entries[0].Count)

	n, err := breach.HashCount(context.Background(), c, "password")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = r.Range(context.Background(), "ZZZZZ")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestMapError(t *testing.T) {
	plain := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"non status", plain, plain},
		{"unauthenticated", status.Error(codes.Unauthenticated, "missing token"), common.ErrorUnauthorized},
		{"invalid", status.Error(codes.InvalidArgument, "name required"), common.ErrorValidation},
		{"not found", status.Error(codes.NotFound, "not found"), common.ErrorNotFound},
		{"exists", status.Error(codes.AlreadyExists, "already exists"), common.ErrorConflict},
		{"throttled", status.Error(codes.ResourceExhausted, "too many attempts"), ErrRateLimited},
		{"upstream", status.Error(codes.Unavailable, "upstream failure"), common.ErrorUpstream},
		{"down", status.Error(codes.Unavailable, "connection refused"), ErrUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline"), ErrUnavailable},
		{"canceled", status.Error(codes.Canceled, "canceled"), context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				require.NoError(t, got)
				return
			}
			require.ErrorIs(t, got, tt.want)
		})
	}

	got := mapError(status.Error(codes.Internal, "internal error"))
	require.ErrorContains(t, got, "rpc error")
}
