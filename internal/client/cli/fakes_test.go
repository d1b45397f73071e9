package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/client/client"
	"github.com/dmitrijs2005/securevault/internal/client/config"
	"github.com/dmitrijs2005/securevault/internal/client/services"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/keyring"
	"github.com/dmitrijs2005/securevault/internal/vault"
	"google.golang.org/grpc"
)

// fakeClient records the calls the CLI makes directly. Unimplemented
// methods panic through the embedded nil interface.
type fakeClient struct {
	client.Client

	mu        sync.Mutex
	token     string
	status    api.SessionStatus
	statusErr error
	threats   []api.ReportThreatRequest
	events    []api.RecordEventRequest
	breaches  map[string]int
	export    *api.ExportResponse
	devices   []api.TrustedDevice
	closed    bool
}

func (f *fakeClient) SetSessionToken(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = t
}

func (f *fakeClient) SessionStatus(context.Context, *api.Empty, ...grpc.CallOption) (*api.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st := f.status
	return &st, nil
}

func (f *fakeClient) ReportThreat(_ context.Context, in *api.ReportThreatRequest, _ ...grpc.CallOption) (*api.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threats = append(f.threats, *in)
	sev := 1
	if in.Severity != nil {
		sev = *in.Severity
	}
	f.status.ThreatLevel += sev
	if f.status.ThreatLevel >= 3 {
		f.status.IsLockedDown = true
	}
	st := f.status
	return &st, nil
}

func (f *fakeClient) RecordEvent(_ context.Context, in *api.RecordEventRequest, _ ...grpc.CallOption) (*api.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *in)
	return &api.Empty{}, nil
}

func (f *fakeClient) Range(_ context.Context, prefix string) ([]breach.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []breach.Entry
	for hash, n := range f.breaches {
		if hash[:5] == prefix {
			out = append(out, breach.Entry{Suffix: hash[5:], Count: n})
		}
	}
	return out, nil
}

func (f *fakeClient) Export(context.Context, *api.Empty, ...grpc.CallOption) (*api.ExportResponse, error) {
	return f.export, nil
}

func (f *fakeClient) ListTrustedDevices(_ context.Context, in *api.ListTrustedDevicesRequest, _ ...grpc.CallOption) (*api.ListTrustedDevicesResponse, error) {
	out := make([]api.TrustedDevice, 0, len(f.devices))
	for _, d := range f.devices {
		d.IsCurrent = d.Fingerprint == in.Fingerprint
		out = append(out, d)
	}
	return &api.ListTrustedDevicesResponse{Devices: out}, nil
}

func (f *fakeClient) Healthy(context.Context) error { return nil }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) ThreatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threats)
}

// fakeAuth accepts one password and optionally demands a second factor.
type fakeAuth struct {
	services.AuthService

	password  string
	twoFactor bool
	verified  int
	trusted   bool
	loggedOut bool
}

func (f *fakeAuth) LastUsername(context.Context) string { return "alice" }

func (f *fakeAuth) Login(_ context.Context, username string, password []byte) (*services.Session, *services.PendingLogin, error) {
	if string(password) != f.password {
		return nil, nil, common.ErrorUnauthorized
	}
	if f.twoFactor {
		return nil, &services.PendingLogin{}, services.ErrTwoFactorRequired
	}
	return newSession(username), nil, nil
}

func (f *fakeAuth) CompleteTwoFactor(_ context.Context, _ *services.PendingLogin, code string, trust bool, _ string) (*services.Session, error) {
	if code != "123456" {
		return nil, common.ErrorUnauthorized
	}
	f.trusted = trust
	return newSession("alice"), nil
}

func (f *fakeAuth) VerifyPassword(_ context.Context, s *services.Session, password []byte) error {
	if s == nil || s.Locked() {
		return services.ErrSessionLocked
	}
	if string(password) != f.password {
		return common.ErrorUnauthorized
	}
	f.verified++
	return nil
}

func (f *fakeAuth) Logout(_ context.Context, s *services.Session) error {
	f.loggedOut = true
	s.Wipe()
	return nil
}

// fakeVaults serves items from memory.
type fakeVaults struct {
	services.VaultService

	vaults  []api.Vault
	items   []vault.Item
	created []string
	added   []vault.Bundle
	deleted []string
}

func (f *fakeVaults) ListVaults(context.Context) ([]api.Vault, error) {
	return f.vaults, nil
}

func (f *fakeVaults) CreateVault(_ context.Context, _ *services.Session, name, icon string) (*services.OpenVault, error) {
	v := api.Vault{ID: "v-" + name, Name: name, Icon: icon}
	f.vaults = append(f.vaults, v)
	f.created = append(f.created, name)
	return &services.OpenVault{Info: v}, nil
}

func (f *fakeVaults) OpenVault(_ context.Context, _ *services.Session, v api.Vault) (*services.OpenVault, error) {
	return &services.OpenVault{Info: v}, nil
}

func (f *fakeVaults) Items(_ context.Context, ov *services.OpenVault) ([]vault.Item, error) {
	var out []vault.Item
	for _, it := range f.items {
		if it.VaultID == ov.Info.ID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeVaults) AddItem(_ context.Context, ov *services.OpenVault, b vault.Bundle) (vault.Item, error) {
	f.added = append(f.added, b)
	it := vault.Item{ID: "i-new", VaultID: ov.Info.ID, Bundle: b}
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeVaults) DeleteItem(_ context.Context, _ *services.OpenVault, id string) error {
	f.deleted = append(f.deleted, id)
	kept := f.items[:0]
	for _, it := range f.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return nil
}

type fakeClipboard struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (c *fakeClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, text)
	return nil
}

func (c *fakeClipboard) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func newSession(username string) *services.Session {
	return services.NewSession(services.SessionInfo{
		Username:  username,
		Token:     "tok-" + username,
		ExpiresAt: time.Now().Add(time.Hour),
	}, keyring.KeyFromBytes(bytes.Repeat([]byte{7}, 32)))
}

type fixture struct {
	app    *App
	client *fakeClient
	auth   *fakeAuth
	vaults *fakeVaults
	clip   *fakeClipboard
	out    *bytes.Buffer
}

// newFixture builds an App over fakes. input feeds every prompt.
func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.IdleLockWindow = 0
	cfg.ClipboardWipeDelay = 20 * time.Millisecond

	f := &fixture{
		client: &fakeClient{breaches: map[string]int{}},
		auth:   &fakeAuth{password: "correct horse"},
		vaults: &fakeVaults{},
		clip:   &fakeClipboard{},
		out:    &bytes.Buffer{},
	}
	f.app = &App{
		config:      cfg,
		client:      f.client,
		auth:        f.auth,
		vaults:      f.vaults,
		reader:      rdr(input),
		out:         f.out,
		fingerprint: "fp-here",
	}
	f.app.setup(f.clip)

	oldPw := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(f.auth.password), nil }
	t.Cleanup(func() { readPassword = oldPw })
	return f
}

// run executes one command line through the table and gate.
func (f *fixture) run(t *testing.T, line string) error {
	t.Helper()
	cmd, args, ok := f.app.commands.lookup(strings.Fields(line))
	if !ok {
		t.Fatalf("unknown command %q", line)
	}
	if err := f.app.gate(cmd); err != nil {
		return err
	}
	return cmd.run(context.Background(), args)
}

// loggedIn installs a session with a default vault holding items.
func (f *fixture) loggedIn(t *testing.T, items ...vault.Item) {
	t.Helper()
	f.vaults.vaults = []api.Vault{{ID: "v1", Name: services.DefaultVaultName}}
	for i := range items {
		if items[i].VaultID == "" {
			items[i].VaultID = "v1"
		}
	}
	f.vaults.items = items
	f.app.mu.Lock()
	f.app.startLocked(context.Background(), newSession("alice"))
	f.app.mu.Unlock()
}
