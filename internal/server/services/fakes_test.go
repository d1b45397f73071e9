package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/server/config"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/items"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/trusttokens"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/vaults"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// expectTxs queues n committed transactions.
func expectTxs(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                  "k",
		SessionValidityDuration:    24 * time.Hour,
		TrustTokenValidityDuration: 30 * 24 * time.Hour,
		S3Region:                   "us-east-1",
		S3RootUser:                 "minioadmin",
		S3RootPassword:             "minioadmin",
		S3BaseEndpoint:             "http://127.0.0.1:9000",
		S3Bucket:                   "securevault",
	}
}

type testEnv struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	repos *fakeRepoManager
	audit *AuditService
	cfg   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	return &testEnv{
		db:    db,
		mock:  mock,
		repos: rm,
		audit: NewAuditService(db, rm, logging.Nop()),
		cfg:   testConfig(),
	}
}

// --- fake repositories ---

type fakeUsers struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]*models.User
	getErr error
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.UserName == u.UserName {
			return nil, fmt.Errorf("%w: constraint", common.ErrorConflict)
		}
	}
	f.seq++
	c := *u
	c.ID = fmt.Sprintf("u-%d", f.seq)
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.UserName == login {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, userID, salt, authHash, encVK, encRK string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Salt, u.AuthHash, u.EncryptedVaultKey = salt, authHash, encVK
	if encRK != "" {
		u.EncryptedRecoveryKey = encRK
	}
	return nil
}

func (f *fakeUsers) SetTempTwoFactorSecret(ctx context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.TempTwoFactorSecret = secret
	return nil
}

func (f *fakeUsers) EnableTwoFactor(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok || u.TempTwoFactorSecret == "" {
		return common.ErrorNotFound
	}
	u.TwoFactorSecret, u.TempTwoFactorSecret, u.TwoFactorEnabled = u.TempTwoFactorSecret, "", true
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, userID)
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	seq     int
	byToken map[string]*models.Session
	addErr  error
}

func (f *fakeSessions) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := *s
	c.ID = fmt.Sprintf("s-%d", f.seq)
	c.CreatedAt = time.Now()
	f.byToken[c.Token] = &c
	out := c
	return &out, nil
}

func (f *fakeSessions) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSessions) AddThreat(ctx context.Context, sessionID string, severity int) (*models.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	for _, s := range f.byToken {
		if s.ID == sessionID {
			s.ThreatLevel += severity
			s.IsLockedDown = s.IsLockedDown || s.ThreatLevel >= sessions.LockdownThreshold
			st := s.Status()
			return &st, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSessions) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byToken, token)
	return nil
}

func (f *fakeSessions) DeleteByUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.byToken {
		if s.UserID == userID {
			delete(f.byToken, k)
		}
	}
	return nil
}

func (f *fakeSessions) forUser(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.byToken {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type fakeTrust struct {
	mu   sync.Mutex
	seq  int
	rows []*models.TrustToken
}

func (f *fakeTrust) Upsert(ctx context.Context, t *models.TrustToken) (*models.TrustToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == t.UserID && r.Fingerprint == t.Fingerprint {
			r.Token, r.DeviceName, r.ExpiresAt = t.Token, t.DeviceName, t.ExpiresAt
			c := *r
			return &c, nil
		}
	}
	f.seq++
	c := *t
	c.ID = fmt.Sprintf("t-%d", f.seq)
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, &c)
	out := c
	return &out, nil
}

func (f *fakeTrust) Find(ctx context.Context, userID, fingerprint string) (*models.TrustToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.Fingerprint == fingerprint {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTrust) ListByUser(ctx context.Context, userID string) ([]models.TrustToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TrustToken
	for _, r := range f.rows {
		if r.UserID == userID {
			c := *r
			c.Token = ""
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeTrust) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id && r.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeTrust) DeleteAll(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.TrustToken
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeTrust) expire(userID, fingerprint string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.Fingerprint == fingerprint {
			r.ExpiresAt = at
		}
	}
}

type fakeVaults struct {
	mu   sync.Mutex
	seq  int
	rows []*models.Vault
}

func (f *fakeVaults) Create(ctx context.Context, v *models.Vault) (*models.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == v.UserID && r.Name == v.Name {
			return nil, fmt.Errorf("%w: constraint", common.ErrorConflict)
		}
	}
	f.seq++
	c := *v
	c.ID = fmt.Sprintf("v-%d", f.seq)
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, &c)
	out := c
	return &out, nil
}

func (f *fakeVaults) ListByUser(ctx context.Context, userID string) ([]models.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Vault
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeVaults) Get(ctx context.Context, id, userID string) (*models.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.UserID == userID {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeVaults) owner(vaultID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == vaultID {
			return r.UserID
		}
	}
	return ""
}

type fakeItems struct {
	mu     sync.Mutex
	seq    int
	rows   []*models.Item
	vaults *fakeVaults
}

func (f *fakeItems) Create(ctx context.Context, it *models.Item) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if it.BlindIndex != "" && r.VaultID == it.VaultID && r.BlindIndex == it.BlindIndex {
			return nil, fmt.Errorf("%w: constraint", common.ErrorConflict)
		}
	}
	f.seq++
	c := *it
	c.ID = fmt.Sprintf("i-%d", f.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.rows = append(f.rows, &c)
	out := c
	return &out, nil
}

func (f *fakeItems) ListByVault(ctx context.Context, vaultID string) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, r := range f.rows {
		if r.VaultID == vaultID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeItems) ListByUser(ctx context.Context, userID string) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, r := range f.rows {
		if f.vaults.owner(r.VaultID) == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeItems) Update(ctx context.Context, userID string, it *models.Item) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == it.ID && f.vaults.owner(r.VaultID) == userID {
			r.EncryptedData, r.IV, r.BlindIndex, r.UpdatedAt = it.EncryptedData, it.IV, it.BlindIndex, time.Now()
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeItems) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id && f.vaults.owner(r.VaultID) == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakePasskeys struct {
	mu   sync.Mutex
	seq  int
	rows []*models.Passkey
}

func (f *fakePasskeys) Create(ctx context.Context, p *models.Passkey) (*models.Passkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := *p
	c.ID = fmt.Sprintf("p-%d", f.seq)
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, &c)
	out := c
	return &out, nil
}

func (f *fakePasskeys) ListByUser(ctx context.Context, userID string) ([]models.Passkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Passkey
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePasskeys) UpdateCounter(ctx context.Context, id string, counter uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.Counter = counter
			now := time.Now()
			r.LastUsedAt = &now
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakePasskeys) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id && r.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeAudit struct {
	mu        sync.Mutex
	entries   []models.AuditEntry
	insertErr error
}

func (f *fakeAudit) Insert(ctx context.Context, e *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	c := *e
	c.ID = int64(len(f.entries) + 1)
	c.CreatedAt = time.Now()
	f.entries = append(f.entries, c)
	return nil
}

func (f *fakeAudit) Recent(ctx context.Context, username string, limit int) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserName == username {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

// events lists the recorded event names in order.
func (f *fakeAudit) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Event)
	}
	return out
}

func (f *fakeAudit) last() models.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[len(f.entries)-1]
}

type fakeRepoManager struct {
	u  *fakeUsers
	s  *fakeSessions
	t  *fakeTrust
	v  *fakeVaults
	i  *fakeItems
	p  *fakePasskeys
	al *fakeAudit
}

func newFakeRepoManager() *fakeRepoManager {
	v := &fakeVaults{}
	return &fakeRepoManager{
		u:  &fakeUsers{byID: map[string]*models.User{}},
		s:  &fakeSessions{byToken: map[string]*models.Session{}},
		t:  &fakeTrust{},
		v:  v,
		i:  &fakeItems{vaults: v},
		p:  &fakePasskeys{},
		al: &fakeAudit{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository       { return m.s }
func (m *fakeRepoManager) TrustTokens(db dbx.DBTX) trusttokens.Repository { return m.t }
func (m *fakeRepoManager) Vaults(db dbx.DBTX) vaults.Repository           { return m.v }
func (m *fakeRepoManager) Items(db dbx.DBTX) items.Repository             { return m.i }
func (m *fakeRepoManager) Passkeys(db dbx.DBTX) passkeys.Repository       { return m.p }
func (m *fakeRepoManager) AuditLogs(db dbx.DBTX) auditlogs.Repository     { return m.al }
