package services

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/securevault/internal/keyring"
)

var (
	// ErrTwoFactorRequired is returned by Login together with a PendingLogin.
	ErrTwoFactorRequired = errors.New("second factor required")
	// ErrSessionLocked is returned once the session keys have been wiped.
	ErrSessionLocked = errors.New("vault is locked")
)

// Session is an unlocked login. It is never modified after creation; Wipe
// only destroys the key it holds, after which Locked reports true.
type Session struct {
	username             string
	token                string
	vaultKey             *keyring.Key
	salt                 string
	authHash             string
	encryptedRecoveryKey string
	twoFactorEnabled     bool
	expiresAt            time.Time
}

// SessionInfo is the server-side description of a session.
type SessionInfo struct {
	Username             string
	Token                string
	Salt                 string
	AuthHash             string
	EncryptedRecoveryKey string
	TwoFactorEnabled     bool
	ExpiresAt            time.Time
}

// NewSession takes ownership of vaultKey.
func NewSession(info SessionInfo, vaultKey *keyring.Key) *Session {
	return &Session{
		username:             info.Username,
		token:                info.Token,
		vaultKey:             vaultKey,
		salt:                 info.Salt,
		authHash:             info.AuthHash,
		encryptedRecoveryKey: info.EncryptedRecoveryKey,
		twoFactorEnabled:     info.TwoFactorEnabled,
		expiresAt:            info.ExpiresAt,
	}
}

func (s *Session) Username() string       { return s.username }
func (s *Session) Token() string          { return s.token }
func (s *Session) VaultKey() *keyring.Key { return s.vaultKey }
func (s *Session) Salt() string           { return s.salt }
func (s *Session) AuthHash() string       { return s.authHash }
func (s *Session) TwoFactorEnabled() bool { return s.twoFactorEnabled }
func (s *Session) ExpiresAt() time.Time   { return s.expiresAt }
func (s *Session) Expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

// Locked reports whether the vault key is gone.
func (s *Session) Locked() bool { return s.vaultKey == nil || s.vaultKey.Wiped() }

// WithTwoFactor returns a copy of s with the second-factor flag replaced.
// The copy shares the vault key.
func (s *Session) WithTwoFactor(enabled bool) *Session {
	c := *s
	c.twoFactorEnabled = enabled
	return &c
}

// Wipe zeroes the vault key.
func (s *Session) Wipe() {
	if s.vaultKey != nil {
		s.vaultKey.Wipe()
	}
}

// PendingLogin holds the derived master key between the password step and
// the second-factor step, so the password is not derived twice.
type PendingLogin struct {
	username string
	salt     string
	master   *keyring.Master
}

func (p *PendingLogin) Username() string { return p.username }

// Discard wipes the retained master key.
func (p *PendingLogin) Discard() {
	if p != nil && p.master != nil {
		p.master.Wipe()
	}
}
