package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/passkey"
	"github.com/dmitrijs2005/securevault/internal/server/config"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Ceremonies is the authenticator protocol, implemented by *passkey.WebAuthn.
type Ceremonies interface {
	BeginRegistration(user webauthn.User) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	FinishRegistration(user webauthn.User, session webauthn.SessionData, response []byte) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	FinishLogin(user webauthn.User, session webauthn.SessionData, response []byte) (*webauthn.Credential, error)
}

// CeremonyStore keeps in-flight ceremony state, implemented by
// *passkey.ChallengeStore.
type CeremonyStore interface {
	Put(ctx context.Context, c *passkey.Ceremony) (string, error)
	Take(ctx context.Context, id string) (*passkey.Ceremony, error)
}

// PasskeyLoginResult is a passkey login: the session plus the vault key
// wrapped under the authenticator's PRF output.
type PasskeyLoginResult struct {
	LoginResult
	WrappedKey string
}

// PasskeyService registers hardware authenticators and logs in with them.
type PasskeyService struct {
	db                      *sql.DB
	repomanager             repomanager.RepositoryManager
	audit                   *AuditService
	logger                  logging.Logger
	ceremonies              Ceremonies
	store                   CeremonyStore
	sessionValidityDuration time.Duration
	now                     func() time.Time
}

func NewPasskeyService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger,
	ceremonies Ceremonies, store CeremonyStore, cfg *config.Config) *PasskeyService {
	return &PasskeyService{
		db:                      db,
		repomanager:             m,
		audit:                   audit,
		logger:                  logger.With("module", "passkey"),
		ceremonies:              ceremonies,
		store:                   store,
		sessionValidityDuration: cfg.SessionValidityDuration,
		now:                     time.Now,
	}
}

// RegisterOptions starts a registration ceremony for the session's user.
func (s *PasskeyService) RegisterOptions(ctx context.Context, sess *models.Session) (string, *protocol.CredentialCreation, error) {
	user, err := s.loadUser(ctx, sess.UserID)
	if err != nil {
		return "", nil, err
	}
	opts, data, err := s.ceremonies.BeginRegistration(user)
	if err != nil {
		return "", nil, fmt.Errorf("%w: begin registration: %v", common.ErrorInternal, err)
	}
	id, err := s.store.Put(ctx, &passkey.Ceremony{UserID: sess.UserID, Session: *data})
	if err != nil {
		return "", nil, err
	}
	return id, opts, nil
}

// RegisterVerify completes registration and stores the credential together
// with the vault key wrapped under its PRF output.
func (s *PasskeyService) RegisterVerify(ctx context.Context, sess *models.Session, ceremonyID string, response []byte, wrappedKey, deviceName string) (*models.Passkey, error) {
	c, err := s.store.Take(ctx, ceremonyID)
	if err != nil {
		return nil, err
	}
	if c.UserID != sess.UserID {
		return nil, common.ErrorUnauthorized
	}
	user, err := s.loadUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	cred, err := s.ceremonies.FinishRegistration(user, c.Session, response)
	if err != nil {
		return nil, err
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Passkey, error) {
		p, err := s.repomanager.Passkeys(tx).Create(ctx, &models.Passkey{
			UserID:         sess.UserID,
			CredentialID:   cred.ID,
			PublicKey:      cred.PublicKey,
			AAGUID:         cred.Authenticator.AAGUID,
			Counter:        cred.Authenticator.SignCount,
			Transports:     transports,
			DeviceName:     deviceName,
			WrappedKey:     wrappedKey,
			BackupEligible: cred.Flags.BackupEligible,
			BackupState:    cred.Flags.BackupState,
		})
		if err != nil {
			return nil, err
		}
		if err := s.audit.record(ctx, tx, sess.UserName, EventPasskeyRegistered, map[string]any{"passkeyId": p.ID}); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// LoginOptions starts an assertion ceremony for username's credentials.
func (s *PasskeyService) LoginOptions(ctx context.Context, username string) (string, *protocol.CredentialAssertion, error) {
	if username == "" {
		return "", nil, fmt.Errorf("%w: username required", common.ErrorValidation)
	}
	u, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, err
	}
	user, err := s.loadUser(ctx, u.ID)
	if err != nil {
		return "", nil, err
	}
	if len(user.Credentials) == 0 {
		return "", nil, fmt.Errorf("%w: no passkeys registered", common.ErrorNotFound)
	}
	opts, data, err := s.ceremonies.BeginLogin(user)
	if err != nil {
		return "", nil, fmt.Errorf("%w: begin login: %v", common.ErrorInternal, err)
	}
	id, err := s.store.Put(ctx, &passkey.Ceremony{UserID: u.ID, Session: *data})
	if err != nil {
		return "", nil, err
	}
	return id, opts, nil
}

// LoginVerify completes an assertion. A signature counter that did not
// advance is treated as a cloned authenticator and rejected.
func (s *PasskeyService) LoginVerify(ctx context.Context, ceremonyID string, response []byte) (*PasskeyLoginResult, error) {
	c, err := s.store.Take(ctx, ceremonyID)
	if err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	keys, err := s.repomanager.Passkeys(s.db).ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	user := newWebAuthnUser(u, keys)

	cred, err := s.ceremonies.FinishLogin(user, c.Session, response)
	if err != nil {
		return nil, err
	}

	var stored *models.Passkey
	for i := range keys {
		if bytes.Equal(keys[i].CredentialID, cred.ID) {
			stored = &keys[i]
			break
		}
	}
	if stored == nil {
		return nil, common.ErrorUnauthorized
	}

	next := cred.Authenticator.SignCount
	if err := passkey.CheckSignCount(stored.Counter, next); err != nil {
		if aerr := s.audit.Record(ctx, u.UserName, EventPasskeyCloneSuspected,
			map[string]any{"passkeyId": stored.ID, "stored": stored.Counter, "presented": next}); aerr != nil {
			return nil, aerr
		}
		s.logger.Warn(ctx, "passkey counter did not advance", "user", u.UserName)
		return nil, err
	}
	if err := s.repomanager.Passkeys(s.db).UpdateCounter(ctx, stored.ID, next); err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, u.UserName, EventPasskeyLogin, nil); err != nil {
		return nil, err
	}
	sess, err := createSession(ctx, s.repomanager.Sessions(s.db), u, s.now().Add(s.sessionValidityDuration))
	if err != nil {
		return nil, err
	}

	return &PasskeyLoginResult{
		LoginResult: LoginResult{
			UserName:             u.UserName,
			Session:              sess,
			EncryptedVaultKey:    u.EncryptedVaultKey,
			EncryptedRecoveryKey: u.EncryptedRecoveryKey,
			TwoFactorEnabled:     u.TwoFactorEnabled,
		},
		WrappedKey: stored.WrappedKey,
	}, nil
}

func (s *PasskeyService) List(ctx context.Context, sess *models.Session) ([]models.Passkey, error) {
	return s.repomanager.Passkeys(s.db).ListByUser(ctx, sess.UserID)
}

func (s *PasskeyService) Revoke(ctx context.Context, sess *models.Session, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Passkeys(tx).Delete(ctx, id, sess.UserID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, sess.UserName, EventPasskeyRevoked, map[string]any{"passkeyId": id})
	})
}

func (s *PasskeyService) loadUser(ctx context.Context, userID string) (*passkey.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys, err := s.repomanager.Passkeys(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newWebAuthnUser(u, keys), nil
}

func newWebAuthnUser(u *models.User, keys []models.Passkey) *passkey.User {
	creds := make([]webauthn.Credential, 0, len(keys))
	for _, k := range keys {
		transports := make([]protocol.AuthenticatorTransport, 0, len(k.Transports))
		for _, t := range k.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		creds = append(creds, webauthn.Credential{
			ID:        k.CredentialID,
			PublicKey: k.PublicKey,
			Transport: transports,
			Flags: webauthn.CredentialFlags{
				UserPresent:    true,
				BackupEligible: k.BackupEligible,
				BackupState:    k.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				AAGUID:    k.AAGUID,
				SignCount: k.Counter,
			},
		})
	}
	return &passkey.User{ID: u.ID, Name: u.UserName, Credentials: creds}
}
