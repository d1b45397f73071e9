// Package services contains the CLI's application services. Every key is
// derived and unwrapped here on the client; only salts, wrapped keys and the
// auth hash cross the wire.
package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/client/client"
	"github.com/dmitrijs2005/securevault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/keyring"
	"github.com/dmitrijs2005/securevault/internal/logging"
)

// Authenticator drives a hardware authenticator ceremony. It receives the
// relying party options and returns the authenticator response together
// with the 32-byte PRF output.
type Authenticator func(ctx context.Context, options json.RawMessage) (response json.RawMessage, prf []byte, err error)

// AuthService covers the account lifecycle for the CLI.
//
//   - Register creates the key hierarchy and returns the recovery key text,
//     which is shown once and never stored.
//   - Login derives the master key once. When the server asks for a second
//     factor it returns ErrTwoFactorRequired and a PendingLogin that
//     CompleteTwoFactor finishes without deriving again.
//   - Recover re-wraps the vault key under a new password.
//   - VerifyPassword re-proves the master password for guarded items.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (string, error)
	Login(ctx context.Context, username string, password []byte) (*Session, *PendingLogin, error)
	CompleteTwoFactor(ctx context.Context, p *PendingLogin, code string, trustDevice bool, deviceName string) (*Session, error)
	LoginWithPasskey(ctx context.Context, username string, authenticate Authenticator) (*Session, error)
	BindPasskey(ctx context.Context, s *Session, authenticate Authenticator, deviceName string) (*api.Passkey, error)
	Recover(ctx context.Context, username, recoveryKey string, newPassword []byte) error
	VerifyPassword(ctx context.Context, s *Session, password []byte) error
	RevealRecoveryKey(ctx context.Context, s *Session, password []byte) (string, error)
	DeleteAccount(ctx context.Context, s *Session, password []byte, code string) error
	Logout(ctx context.Context, s *Session) error
	LastUsername(ctx context.Context) string
}

type authService struct {
	client      client.Client
	keys        *keyring.Manager
	store       metadata.Repository
	fingerprint string
	logger      logging.Logger
}

// NewAuthService binds the service to a server client, a key manager and
// the local state store. fingerprint is used as the derivation context and
// as the device identity for trust tokens.
func NewAuthService(c client.Client, keys *keyring.Manager, store metadata.Repository, fingerprint string, logger logging.Logger) AuthService {
	return &authService{
		client:      c,
		keys:        keys,
		store:       store,
		fingerprint: fingerprint,
		logger:      logger.With("module", "auth"),
	}
}

func (a *authService) Register(ctx context.Context, username string, password []byte) (string, error) {
	reg, recoveryKey, vk, err := a.keys.Register(password, a.fingerprint)
	if err != nil {
		return "", err
	}
	vk.Wipe()

	_, err = a.client.Register(ctx, &api.RegisterRequest{
		Username:             username,
		Salt:                 reg.Salt,
		AuthHash:             reg.AuthHash,
		EncryptedVaultKey:    reg.EncryptedVaultKey,
		RecoverySalt:         reg.RecoverySalt,
		RecoveryVaultKey:     reg.RecoveryVaultKey,
		EncryptedRecoveryKey: reg.EncryptedRecoveryKey,
	})
	if err != nil {
		return "", err
	}
	a.rememberUsername(ctx, username)
	return recoveryKey, nil
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*Session, *PendingLogin, error) {
	salt, err := a.client.GetSalt(ctx, &api.GetSaltRequest{Username: username})
	if err != nil {
		return nil, nil, err
	}

	master, err := a.keys.Unlock(password, a.fingerprint, salt.Salt)
	if err != nil {
		return nil, nil, err
	}

	trust, err := a.store.Get(ctx, metadata.TrustTokenKey(username))
	if err != nil {
		a.logger.Warn(ctx, "trust token unavailable", "error", err)
	}

	resp, err := a.client.Login(ctx, &api.LoginRequest{
		Username:    username,
		AuthHash:    master.AuthHash(),
		Fingerprint: a.fingerprint,
		TrustToken:  string(trust),
	})
	if err != nil {
		master.Wipe()
		return nil, nil, err
	}

	if resp.TwoFactorRequired {
		if len(trust) > 0 {
			// The server no longer honours the stored token.
			_ = a.store.Delete(ctx, metadata.TrustTokenKey(username))
		}
		return nil, &PendingLogin{username: username, salt: salt.Salt, master: master}, ErrTwoFactorRequired
	}

	defer master.Wipe()
	return a.open(ctx, username, salt.Salt, master, resp)
}

func (a *authService) CompleteTwoFactor(ctx context.Context, p *PendingLogin, code string, trustDevice bool, deviceName string) (*Session, error) {
	if p == nil || p.master == nil {
		return nil, common.ErrorUnauthorized
	}
	resp, err := a.client.LoginTwoFactor(ctx, &api.LoginTwoFactorRequest{
		Username:    p.username,
		Code:        code,
		AuthHash:    p.master.AuthHash(),
		Fingerprint: a.fingerprint,
		TrustDevice: trustDevice,
		DeviceName:  deviceName,
	})
	if err != nil {
		return nil, err
	}

	if resp.TrustToken != "" {
		if err := a.store.Set(ctx, metadata.TrustTokenKey(p.username), []byte(resp.TrustToken)); err != nil {
			a.logger.Warn(ctx, "trust token not saved", "error", err)
		}
	}

	defer p.Discard()
	return a.open(ctx, p.username, p.salt, p.master, resp)
}

// open unwraps the vault key and builds the session from a successful
// login response.
func (a *authService) open(ctx context.Context, username, salt string, master *keyring.Master, resp *api.LoginResponse) (*Session, error) {
	vk, err := master.OpenVaultKey(resp.EncryptedVaultKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap vault key: %w", err)
	}

	a.client.SetSessionToken(resp.SessionToken)
	a.rememberUsername(ctx, username)
	a.logger.Debug(ctx, "session opened", "username", username, "expiresAt", resp.ExpiresAt)

	return NewSession(SessionInfo{
		Username:             username,
		Token:                resp.SessionToken,
		Salt:                 salt,
		AuthHash:             master.AuthHash(),
		EncryptedRecoveryKey: resp.EncryptedRecoveryKey,
		TwoFactorEnabled:     resp.TwoFactorEnabled,
		ExpiresAt:            resp.ExpiresAt,
	}, vk), nil
}

func (a *authService) LoginWithPasskey(ctx context.Context, username string, authenticate Authenticator) (*Session, error) {
	opts, err := a.client.PasskeyLoginOptions(ctx, &api.PasskeyLoginOptionsRequest{Username: username})
	if err != nil {
		return nil, err
	}

	response, prf, err := authenticate(ctx, opts.Options)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(prf)

	resp, err := a.client.PasskeyLoginVerify(ctx, &api.PasskeyLoginVerifyRequest{CeremonyID: opts.CeremonyID, Response: response})
	if err != nil {
		return nil, err
	}

	vk, err := a.keys.UnlockHardware(prf, resp.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap vault key: %w", err)
	}

	a.client.SetSessionToken(resp.SessionToken)
	a.rememberUsername(ctx, username)

	return NewSession(SessionInfo{
		Username:             username,
		Token:                resp.SessionToken,
		EncryptedRecoveryKey: resp.EncryptedRecoveryKey,
		TwoFactorEnabled:     resp.TwoFactorEnabled,
		ExpiresAt:            resp.ExpiresAt,
	}, vk), nil
}

func (a *authService) BindPasskey(ctx context.Context, s *Session, authenticate Authenticator, deviceName string) (*api.Passkey, error) {
	if s == nil || s.Locked() {
		return nil, ErrSessionLocked
	}
	opts, err := a.client.PasskeyRegisterOptions(ctx, &api.Empty{})
	if err != nil {
		return nil, err
	}

	response, prf, err := authenticate(ctx, opts.Options)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(prf)

	wrapped, err := a.keys.BindHardware(s.vaultKey, prf)
	if err != nil {
		return nil, err
	}

	return a.client.PasskeyRegisterVerify(ctx, &api.PasskeyRegisterVerifyRequest{
		CeremonyID: opts.CeremonyID,
		Response:   response,
		WrappedKey: wrapped,
		DeviceName: deviceName,
	})
}

func (a *authService) Recover(ctx context.Context, username, recoveryKey string, newPassword []byte) error {
	salt, err := a.client.GetSalt(ctx, &api.GetSaltRequest{Username: username})
	if err != nil {
		return err
	}
	if salt.RecoverySalt == "" || salt.RecoveryVaultKey == "" {
		return fmt.Errorf("%w: account has no recovery key", common.ErrorValidation)
	}

	reset, vk, err := a.keys.Recover(recoveryKey, salt.RecoverySalt, salt.RecoveryVaultKey, newPassword, a.fingerprint)
	if err != nil {
		return err
	}
	vk.Wipe()

	_, err = a.client.ResetPassword(ctx, &api.ResetPasswordRequest{
		Username:             username,
		Salt:                 reset.Salt,
		AuthHash:             reset.AuthHash,
		EncryptedVaultKey:    reset.EncryptedVaultKey,
		EncryptedRecoveryKey: reset.EncryptedRecoveryKey,
	})
	return err
}

// reprove derives the master key for s from password and checks it. The
// caller must wipe the returned master.
func (a *authService) reprove(ctx context.Context, s *Session, password []byte) (*keyring.Master, error) {
	if s == nil || s.Locked() {
		return nil, ErrSessionLocked
	}

	salt, want := s.salt, s.authHash
	var encryptedVaultKey string
	if salt == "" || want == "" {
		sr, err := a.client.GetSalt(ctx, &api.GetSaltRequest{Username: s.username})
		if err != nil {
			return nil, err
		}
		salt, encryptedVaultKey = sr.Salt, sr.EncryptedVaultKey
	}

	master, err := a.keys.Unlock(password, a.fingerprint, salt)
	if err != nil {
		return nil, err
	}

	if want != "" {
		if subtle.ConstantTimeCompare([]byte(master.AuthHash()), []byte(want)) != 1 {
			master.Wipe()
			return nil, common.ErrorUnauthorized
		}
		return master, nil
	}

	// Passkey sessions carry no auth hash; a successful unwrap proves the
	// password instead.
	vk, err := master.OpenVaultKey(encryptedVaultKey)
	if err != nil {
		master.Wipe()
		return nil, common.ErrorUnauthorized
	}
	vk.Wipe()
	return master, nil
}

func (a *authService) VerifyPassword(ctx context.Context, s *Session, password []byte) error {
	master, err := a.reprove(ctx, s, password)
	if err != nil {
		return err
	}
	master.Wipe()
	return nil
}

func (a *authService) RevealRecoveryKey(ctx context.Context, s *Session, password []byte) (string, error) {
	master, err := a.reprove(ctx, s, password)
	if err != nil {
		return "", err
	}
	defer master.Wipe()
	if s.encryptedRecoveryKey == "" {
		return "", fmt.Errorf("%w: no stored recovery key", common.ErrorNotFound)
	}
	return master.RevealRecoveryKey(s.encryptedRecoveryKey)
}

func (a *authService) DeleteAccount(ctx context.Context, s *Session, password []byte, code string) error {
	master, err := a.reprove(ctx, s, password)
	if err != nil {
		return err
	}
	defer master.Wipe()

	_, err = a.client.DeleteAccount(ctx, &api.DeleteAccountRequest{
		Username: s.username,
		AuthHash: master.AuthHash(),
		Code:     code,
	})
	if err != nil {
		return err
	}

	if err := a.store.Delete(ctx, metadata.TrustTokenKey(s.username)); err != nil {
		a.logger.Warn(ctx, "trust token not removed", "error", err)
	}
	a.client.SetSessionToken("")
	s.Wipe()
	return nil
}

// Logout closes the server session and wipes the local keys. The keys are
// wiped even when the server cannot be reached.
func (a *authService) Logout(ctx context.Context, s *Session) error {
	_, err := a.client.Logout(ctx, &api.Empty{})
	a.client.SetSessionToken("")
	if s != nil {
		s.Wipe()
	}
	return err
}

func (a *authService) LastUsername(ctx context.Context) string {
	v, err := a.store.Get(ctx, metadata.LastUsernameKey)
	if err != nil {
		return ""
	}
	return string(v)
}

func (a *authService) rememberUsername(ctx context.Context, username string) {
	if err := a.store.Set(ctx, metadata.LastUsernameKey, []byte(username)); err != nil {
		a.logger.Warn(ctx, "username not saved", "error", err)
	}
}
