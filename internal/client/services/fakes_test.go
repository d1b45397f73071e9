package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/client/client"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/dmitrijs2005/securevault/internal/keyring"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

const (
	goodCode     = "123456"
	trustedToken = "trusted-token"
)

// fakeServer is an in-memory stand-in for the vault server. Unimplemented
// methods panic through the embedded nil interface.
type fakeServer struct {
	client.Client

	mu        sync.Mutex
	users     map[string]*api.RegisterRequest
	twoFactor map[string]bool
	passkeys  map[string]string
	vaults    []api.Vault
	items     map[string]api.Item
	token     string
	seq       int
	logoutErr error
	ranges    int
	breached  map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		users:     map[string]*api.RegisterRequest{},
		twoFactor: map[string]bool{},
		passkeys:  map[string]string{},
		items:     map[string]api.Item{},
	}
}

func (f *fakeServer) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeServer) SetSessionToken(t string) {
	f.mu.Lock()
	f.token = t
	f.mu.Unlock()
}

func (f *fakeServer) sessionToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeServer) Register(_ context.Context, in *api.RegisterRequest, _ ...grpc.CallOption) (*api.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[in.Username]; ok {
		return nil, common.ErrorConflict
	}
	cp := *in
	f.users[in.Username] = &cp
	return &api.RegisterResponse{UserID: f.next("u")}, nil
}

func (f *fakeServer) GetSalt(_ context.Context, in *api.GetSaltRequest, _ ...grpc.CallOption) (*api.GetSaltResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &api.GetSaltResponse{
		Salt:                 u.Salt,
		RecoverySalt:         u.RecoverySalt,
		RecoveryVaultKey:     u.RecoveryVaultKey,
		EncryptedVaultKey:    u.EncryptedVaultKey,
		EncryptedRecoveryKey: u.EncryptedRecoveryKey,
	}, nil
}

func (f *fakeServer) session(u *api.RegisterRequest) *api.LoginResponse {
	return &api.LoginResponse{
		Username:             u.Username,
		SessionToken:         f.next("sess"),
		ExpiresAt:            time.Now().Add(time.Hour),
		EncryptedVaultKey:    u.EncryptedVaultKey,
		EncryptedRecoveryKey: u.EncryptedRecoveryKey,
		TwoFactorEnabled:     f.twoFactor[u.Username],
	}
}

func (f *fakeServer) Login(_ context.Context, in *api.LoginRequest, _ ...grpc.CallOption) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Username]
	if !ok || u.AuthHash != in.AuthHash {
		return nil, common.ErrorUnauthorized
	}
	if f.twoFactor[in.Username] && in.TrustToken != trustedToken {
		return &api.LoginResponse{TwoFactorRequired: true, Username: in.Username}, nil
	}
	return f.session(u), nil
}

func (f *fakeServer) LoginTwoFactor(_ context.Context, in *api.LoginTwoFactorRequest, _ ...grpc.CallOption) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Username]
	if !ok || u.AuthHash != in.AuthHash || in.Code != goodCode {
		return nil, common.ErrorUnauthorized
	}
	resp := f.session(u)
	if in.TrustDevice {
		resp.TrustToken = trustedToken
	}
	return resp, nil
}

func (f *fakeServer) ResetPassword(_ context.Context, in *api.ResetPasswordRequest, _ ...grpc.CallOption) (*api.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Salt, u.AuthHash, u.EncryptedVaultKey = in.Salt, in.AuthHash, in.EncryptedVaultKey
	if in.EncryptedRecoveryKey != "" {
		u.EncryptedRecoveryKey = in.EncryptedRecoveryKey
	}
	return &api.Empty{}, nil
}

func (f *fakeServer) DeleteAccount(_ context.Context, in *api.DeleteAccountRequest, _ ...grpc.CallOption) (*api.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Username]
	if !ok || u.AuthHash != in.AuthHash {
		return nil, common.ErrorUnauthorized
	}
	delete(f.users, in.Username)
	return &api.Empty{}, nil
}

func (f *fakeServer) Logout(context.Context, *api.Empty, ...grpc.CallOption) (*api.Empty, error) {
	return &api.Empty{}, f.logoutErr
}

func (f *fakeServer) PasskeyRegisterOptions(context.Context, *api.Empty, ...grpc.CallOption) (*api.CeremonyResponse, error) {
	return &api.CeremonyResponse{CeremonyID: "reg-1", Options: json.RawMessage(`{"publicKey":{}}`)}, nil
}

func (f *fakeServer) PasskeyRegisterVerify(_ context.Context, in *api.PasskeyRegisterVerifyRequest, _ ...grpc.CallOption) (*api.Passkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passkeys[in.CeremonyID] = in.WrappedKey
	return &api.Passkey{ID: "pk-1", DeviceName: in.DeviceName}, nil
}

func (f *fakeServer) PasskeyLoginOptions(_ context.Context, in *api.PasskeyLoginOptionsRequest, _ ...grpc.CallOption) (*api.CeremonyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[in.Username]; !ok {
		return nil, common.ErrorUnauthorized
	}
	return &api.CeremonyResponse{CeremonyID: "login-1:" + in.Username, Options: json.RawMessage(`{"publicKey":{}}`)}, nil
}

func (f *fakeServer) PasskeyLoginVerify(_ context.Context, in *api.PasskeyLoginVerifyRequest, _ ...grpc.CallOption) (*api.PasskeyLoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	username := strings.TrimPrefix(in.CeremonyID, "login-1:")
	u, ok := f.users[username]
	wrapped, bound := f.passkeys["reg-1"]
	if !ok || !bound {
		return nil, common.ErrorUnauthorized
	}
	return &api.PasskeyLoginResponse{LoginResponse: *f.session(u), WrappedKey: wrapped}, nil
}

func (f *fakeServer) CreateVault(_ context.Context, in *api.CreateVaultRequest, _ ...grpc.CallOption) (*api.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.vaults {
		if v.Name == in.Name {
			return nil, common.ErrorConflict
		}
	}
	v := api.Vault{ID: f.next("v"), Name: in.Name, Icon: in.Icon, EncryptedSubKey: in.EncryptedSubKey, IV: in.IV, CreatedAt: time.Now()}
	f.vaults = append(f.vaults, v)
	return &v, nil
}

func (f *fakeServer) ListVaults(context.Context, *api.Empty, ...grpc.CallOption) (*api.ListVaultsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.ListVaultsResponse{Vaults: append([]api.Vault(nil), f.vaults...)}, nil
}

func (f *fakeServer) ListItems(_ context.Context, in *api.ListItemsRequest, _ ...grpc.CallOption) (*api.ListItemsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Item
	for _, it := range f.items {
		if it.VaultID == in.VaultID {
			out = append(out, it)
		}
	}
	return &api.ListItemsResponse{Items: out}, nil
}

func (f *fakeServer) CreateItem(_ context.Context, in *api.CreateItemRequest, _ ...grpc.CallOption) (*api.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.VaultID == in.VaultID && in.BlindIndex != "" && it.BlindIndex == in.BlindIndex {
			return nil, common.ErrorConflict
		}
	}
	it := api.Item{ID: f.next("i"), VaultID: in.VaultID, EncryptedData: in.EncryptedData, IV: in.IV, BlindIndex: in.BlindIndex}
	f.items[it.ID] = it
	return &it, nil
}

func (f *fakeServer) UpdateItem(_ context.Context, in *api.UpdateItemRequest, _ ...grpc.CallOption) (*api.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[in.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	it.EncryptedData, it.IV, it.BlindIndex = in.EncryptedData, in.IV, in.BlindIndex
	f.items[in.ID] = it
	return &it, nil
}

func (f *fakeServer) DeleteItem(_ context.Context, in *api.IDRequest, _ ...grpc.CallOption) (*api.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[in.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.items, in.ID)
	return &api.Empty{}, nil
}

func (f *fakeServer) Range(_ context.Context, prefix string) ([]breach.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges++
	var out []breach.Entry
	for digest, n := range f.breached {
		if strings.HasPrefix(digest, prefix) {
			out = append(out, breach.Entry{Suffix: digest[len(prefix):], Count: n})
		}
	}
	return out, nil
}

// memStore is a map-backed metadata.Repository.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) List(_ context.Context, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range s.m {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

var testParams = cryptox.Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLen: 32}

type fixture struct {
	srv    *fakeServer
	store  *memStore
	keys   *keyring.Manager
	auth   AuthService
	vaults VaultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := cryptox.Initialize(testParams)
	require.NoError(t, err)
	f := &fixture{srv: newFakeServer(), store: newMemStore(), keys: keyring.NewManager(eng)}
	f.auth = NewAuthService(f.srv, f.keys, f.store, "device-a", logging.Nop())
	f.vaults = NewVaultService(f.srv, f.keys, logging.Nop())
	return f
}
