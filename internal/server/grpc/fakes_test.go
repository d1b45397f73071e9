package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

type fakeAuth struct {
	AuthService
	mu        sync.Mutex
	loginRes  *services.LoginResult
	loginErr  error
	logins    int
	registers int
	deleted   []string
}

func (f *fakeAuth) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return &models.User{ID: "u-1", UserName: in.UserName}, nil
}

func (f *fakeAuth) DeleteAccount(ctx context.Context, sess *models.Session, username, authHash, code string) error {
	f.deleted = append(f.deleted, sess.UserID+":"+username)
	return nil
}

type fakeSessions struct {
	SessionService
	byToken map[string]*models.Session
}

func (f *fakeSessions) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	s, ok := f.byToken[token]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return s, nil
}

func (f *fakeSessions) Status(ctx context.Context, sess *models.Session) models.SessionStatus {
	return sess.Status()
}

func (f *fakeSessions) ReportThreat(ctx context.Context, sess *models.Session, event, details string, severity *int) (*models.SessionStatus, error) {
	n := 1
	if severity != nil {
		n = *severity
	}
	sess.ThreatLevel += n
	sess.IsLockedDown = sess.IsLockedDown || sess.ThreatLevel >= 3
	st := sess.Status()
	return &st, nil
}

type fakeVaults struct {
	VaultService
	seenUser string
	created  int
}

func (f *fakeVaults) ListVaults(ctx context.Context, sess *models.Session) ([]models.Vault, error) {
	f.seenUser = sess.UserID
	return []models.Vault{{ID: "v-1", Name: "Personal", Icon: "Lock"}}, nil
}

func (f *fakeVaults) CreateItem(ctx context.Context, sess *models.Session, vaultID string, in services.ItemInput) (*models.Item, error) {
	f.created++
	return &models.Item{ID: "i-1", VaultID: vaultID, EncryptedData: in.EncryptedData, IV: in.IV}, nil
}

type fakeBreach struct {
	prefix string
}

func (f *fakeBreach) Range(ctx context.Context, prefix string) ([]breach.Entry, error) {
	f.prefix = prefix
	return []breach.Entry{{Suffix: "1E4C9B93F3F0682250B6CF8331B7EE68FD8", Count: 3}}, nil
}

type harness struct {
	srv      *GRPCServer
	client   *api.VaultClient
	auth     *fakeAuth
	sessions *fakeSessions
	vaults   *fakeVaults
	breach   *fakeBreach
}

func newHarness(t *testing.T, burst int) *harness {
	t.Helper()
	h := &harness{
		auth: &fakeAuth{loginRes: &services.LoginResult{
			UserName:          "alice",
			Session:           &models.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
			EncryptedVaultKey: "n:c",
		}},
		sessions: &fakeSessions{byToken: map[string]*models.Session{
			"good":   {ID: "s-1", UserID: "u-1", UserName: "alice", ExpiresAt: time.Now().Add(time.Hour)},
			"locked": {ID: "s-2", UserID: "u-2", UserName: "bob", ThreatLevel: 3, IsLockedDown: true},
		}},
		vaults: &fakeVaults{},
		breach: &fakeBreach{},
	}
	h.srv = NewGRPCServer("bufnet", logging.Nop(), Services{
		Auth:     h.auth,
		Sessions: h.sessions,
		Vaults:   h.vaults,
		Breach:   h.breach,
	}, 0, burst)

	lis := bufconn.Listen(1 << 20)
	gs := h.srv.NewServer()
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	h.client = api.NewVaultClient(conn)
	return h
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), common.SessionTokenHeaderName, token)
}
