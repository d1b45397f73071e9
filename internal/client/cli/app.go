package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/client/client"
	"github.com/dmitrijs2005/securevault/internal/client/config"
	"github.com/dmitrijs2005/securevault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/securevault/internal/client/services"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/dmitrijs2005/securevault/internal/keyring"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/vault"

	_ "modernc.org/sqlite"
)

// ErrNotLoggedIn is returned by session commands without an unlocked session.
var ErrNotLoggedIn = errors.New("not logged in (or locked); use login")

// ErrLockedDown is returned by reveal commands while the session is locked down.
var ErrLockedDown = errors.New("session is locked down; secrets cannot be revealed")

type App struct {
	config      *config.Config
	logger      logging.Logger
	client      client.Client
	auth        services.AuthService
	vaults      services.VaultService
	wiper       *ClipboardWiper
	idle        *IdleLock
	reader      *bufio.Reader
	out         io.Writer
	http        *http.Client
	db          *sql.DB
	fingerprint string
	now         func() time.Time
	commands    commandTable
	closeOnce   sync.Once

	// mu guards the session state below. Commands run while holding it.
	mu      sync.Mutex
	session *services.Session
	current *services.OpenVault
	items   []vault.Item

	lockedDown atomic.Bool
	threat     atomic.Int64
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	params, err := c.KDFParams()
	if err != nil {
		return nil, err
	}

	logger := logging.New(c.LogFormat, c.LogLevel, os.Stderr)

	db, err := client.InitDatabase(ctx, c.StateDBPath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "err", err)
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	engine, err := cryptox.Initialize(params)
	if err != nil {
		_ = db.Close()
		_ = apiClient.Close()
		return nil, err
	}
	keys := keyring.NewManager(engine)
	fp := services.Fingerprint()

	a := &App{
		config:      c,
		logger:      logger,
		client:      apiClient,
		auth:        services.NewAuthService(apiClient, keys, metadata.NewSQLiteRepository(db), fp, logger),
		vaults:      services.NewVaultService(apiClient, keys, logger),
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		http:        &http.Client{Timeout: c.RequestTimeout},
		db:          db,
		fingerprint: fp,
		now:         time.Now,
	}
	a.setup(NewSystemClipboard())
	return a, nil
}

// setup builds the parts shared by NewApp and tests.
func (a *App) setup(clip Clipboard) {
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = logging.Nop()
	}
	a.wiper = NewClipboardWiper(clip, a.config.ClipboardWipeDelay, func(err error) {
		a.logger.Warn(context.Background(), "clipboard wipe failed", "err", err)
	})
	a.idle = NewIdleLock(a.config.IdleLockWindow, func() {
		a.lock("idle timeout")
	})
	a.commands = a.buildCommands()
}

// Run starts the background status poller and the REPL, and blocks until
// the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to SecureVault (type 'help' for commands)")
	if err := a.client.Healthy(ctx); err != nil {
		fmt.Fprintln(a.out, "Server is not reachable:", err)
	}

	go a.pollStatus(ctx, a.config.StatusPollInterval)

	runREPL(ctx, a.commands, a.gate, a.prompt, a.reader, a.out)
}

// Close wipes all key material and releases the connection and the state
// database. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.idle.Stop()
	a.wiper.Flush()

	// A command blocked on input holds mu; the process exits right after.
	if a.mu.TryLock() {
		a.clearLocked()
		a.mu.Unlock()
	}

	if err := a.client.Close(); err != nil {
		a.logger.Warn(context.Background(), "close client", "err", err)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// gate runs before every command, outside mu.
func (a *App) gate(cmd command) error {
	if cmd.session && !a.unlocked() {
		return ErrNotLoggedIn
	}
	if cmd.reveal && a.lockedDown.Load() {
		return ErrLockedDown
	}
	if a.unlocked() {
		a.idle.Touch()
	}
	return nil
}

func (a *App) unlocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && !a.session.Locked()
}

func (a *App) prompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return "securevault"
	}
	p := "securevault " + a.session.Username()
	if a.current != nil {
		p += "/" + a.current.Info.Name
	}
	if a.lockedDown.Load() {
		p += " [LOCKDOWN]"
	}
	return p
}

// startLocked installs a fresh session and opens the default vault.
func (a *App) startLocked(ctx context.Context, s *services.Session) {
	a.clearLocked()
	a.session = s
	a.lockedDown.Store(false)
	a.threat.Store(0)
	a.idle.Touch()

	if err := a.openDefaultLocked(ctx); err != nil {
		a.logger.Warn(ctx, "open default vault", "err", err)
		fmt.Fprintln(a.out, "Could not open a vault:", err)
	}
	a.refreshStatusLocked(ctx)
}

func (a *App) openDefaultLocked(ctx context.Context) error {
	list, err := a.vaults.ListVaults(ctx)
	if err != nil {
		return err
	}
	var ov *services.OpenVault
	if len(list) == 0 {
		ov, err = a.vaults.CreateVault(ctx, a.session, services.DefaultVaultName, "")
	} else {
		pick := list[0]
		for _, v := range list {
			if v.Name == services.DefaultVaultName {
				pick = v
				break
			}
		}
		ov, err = a.vaults.OpenVault(ctx, a.session, pick)
	}
	if err != nil {
		return err
	}
	return a.useLocked(ctx, ov)
}

func (a *App) useLocked(ctx context.Context, ov *services.OpenVault) error {
	if a.current != nil {
		a.current.Close()
	}
	a.current = ov
	a.items = nil
	return a.reloadLocked(ctx)
}

func (a *App) reloadLocked(ctx context.Context) error {
	if a.current == nil {
		return errors.New("no vault selected; use vault use <name>")
	}
	items, err := a.vaults.Items(ctx, a.current)
	if err != nil {
		return err
	}
	a.items = items
	return nil
}

// lock wipes all key material. Commands need a new login afterwards.
func (a *App) lock(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lockLocked(reason)
}

func (a *App) lockLocked(reason string) {
	if a.session == nil {
		return
	}
	a.clearLocked()
	a.wiper.Flush()
	a.logger.Info(context.Background(), "vault locked", "reason", reason)
	fmt.Fprintf(a.out, "\nVault locked (%s). Log in again to continue.\n", reason)
}

// clearLocked forgets the session and wipes every key held in memory.
func (a *App) clearLocked() {
	a.idle.Disarm()
	if a.current != nil {
		a.current.Close()
		a.current = nil
	}
	a.items = nil
	if a.session != nil {
		a.session.Wipe()
		a.session = nil
	}
	a.client.SetSessionToken("")
}

// pollStatus refreshes the server-side session status every interval until
// ctx is cancelled.
func (a *App) pollStatus(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.refreshStatus(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) refreshStatus(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshStatusLocked(ctx)
}

func (a *App) refreshStatusLocked(ctx context.Context) {
	if a.session == nil {
		return
	}
	if a.session.Expired(a.now()) {
		a.lockLocked("session expired")
		return
	}
	st, err := a.client.SessionStatus(ctx, &api.Empty{})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			a.lockLocked("session no longer valid")
			return
		}
		a.logger.Debug(ctx, "session status", "err", err)
		return
	}
	a.applyStatus(st.ThreatLevel, st.IsLockedDown)
}

func (a *App) applyStatus(threat int, lockedDown bool) {
	a.threat.Store(int64(threat))
	if lockedDown && !a.lockedDown.Swap(true) {
		a.wiper.Flush()
		fmt.Fprintln(a.out, "\nSECURITY LOCKDOWN: secrets stay hidden for the rest of this session.")
	}
}
