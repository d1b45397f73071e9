// Package passkey adapts go-webauthn for hardware authenticator ceremonies.
// Every ceremony requests the PRF extension with a fixed salt, so the same
// authenticator always yields the same 32-byte secret for hardware unlock.
package passkey

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// PRFSalt is the evaluation input sent to the authenticator's PRF.
var PRFSalt = bytes.Repeat([]byte{1}, 32)

type Config struct {
	RPID      string
	RPName    string
	RPOrigins []string
	Timeout   time.Duration
}

// WebAuthn runs registration and login ceremonies.
type WebAuthn struct {
	w *webauthn.WebAuthn
}

func NewWebAuthn(cfg Config) (*WebAuthn, error) {
	if cfg.RPID == "" || cfg.RPName == "" || len(cfg.RPOrigins) == 0 {
		return nil, fmt.Errorf("%w: webauthn requires rp id, name and origins", common.ErrorValidation)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName:         cfg.RPName,
		RPID:                  cfg.RPID,
		RPOrigins:             cfg.RPOrigins,
		AttestationPreference: protocol.PreferNoAttestation,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: timeout, TimeoutUVD: timeout},
			Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: timeout, TimeoutUVD: timeout},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}
	return &WebAuthn{w: w}, nil
}

func prfExtension() protocol.AuthenticationExtensions {
	return protocol.AuthenticationExtensions{
		"prf": map[string]any{
			"eval": map[string]any{"first": protocol.URLEncodedBase64(PRFSalt)},
		},
	}
}

// BeginRegistration starts a registration ceremony, excluding credentials the
// user already has.
func (a *WebAuthn) BeginRegistration(user webauthn.User) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	existing := user.WebAuthnCredentials()
	exclude := make([]protocol.CredentialDescriptor, 0, len(existing))
	for _, c := range existing {
		exclude = append(exclude, c.Descriptor())
	}
	return a.w.BeginRegistration(user,
		webauthn.WithExclusions(exclude),
		webauthn.WithExtensions(prfExtension()),
	)
}

// FinishRegistration parses and verifies the authenticator's JSON response.
func (a *WebAuthn) FinishRegistration(user webauthn.User, session webauthn.SessionData, response []byte) (*webauthn.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: parse registration: %v", common.ErrorValidation, err)
	}
	cred, err := a.w.CreateCredential(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: verify registration: %v", common.ErrorUnauthorized, err)
	}
	return cred, nil
}

// BeginLogin starts an assertion ceremony restricted to the user's credentials.
func (a *WebAuthn) BeginLogin(user webauthn.User) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	return a.w.BeginLogin(user,
		webauthn.WithUserVerification(protocol.VerificationDiscouraged),
		webauthn.WithAssertionExtensions(prfExtension()),
	)
}

// FinishLogin parses and verifies an assertion.
func (a *WebAuthn) FinishLogin(user webauthn.User, session webauthn.SessionData, response []byte) (*webauthn.Credential, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: parse assertion: %v", common.ErrorValidation, err)
	}
	cred, err := a.w.ValidateLogin(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: verify assertion: %v", common.ErrorUnauthorized, err)
	}
	return cred, nil
}

// ErrCloned reports a signature counter that did not advance.
var ErrCloned = fmt.Errorf("%w: signature counter did not increase", common.ErrorUnauthorized)

// CheckSignCount validates a new signature counter against the stored one.
// Authenticators that never report a counter keep it at zero.
func CheckSignCount(stored, next uint32) error {
	if stored > 0 && next <= stored {
		return ErrCloned
	}
	return nil
}
