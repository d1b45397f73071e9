// Package keyring manages the client-side key hierarchy:
//
//	password (+device context) ──KDF──▶ Master Key ──▶ Auth Hash (sent to server)
//	                                         │
//	                                         └─wraps─▶ Vault Key ─wraps─▶ Sub-Keys ─▶ items
//	Recovery Key ──KDF──▶ Recovery Master Key ─wraps─▶ Vault Key
//	authenticator PRF output ─────────────────wraps─▶ Vault Key
//
// Only wrapped keys, salts and the auth hash are ever handed to the server.
package keyring

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
)

// RecoveryKeyLen is the length of the hex recovery key text.
const RecoveryKeyLen = cryptox.KeySize * 2

// Registration holds everything the server stores for a new account.
type Registration struct {
	Salt                 string
	AuthHash             string
	EncryptedVaultKey    string
	RecoverySalt         string
	RecoveryVaultKey     string
	EncryptedRecoveryKey string
}

// Reset carries the values replaced on the server after recovery.
type Reset struct {
	Salt                 string
	AuthHash             string
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
}

// SubVault is a sub-key wrapped under the vault key.
type SubVault struct {
	EncryptedSubKey string
	IV              string
}

// Manager performs key hierarchy operations with a given engine.
type Manager struct {
	e *cryptox.Engine
}

func NewManager(e *cryptox.Engine) *Manager {
	return &Manager{e: e}
}

// Engine returns the crypto engine the manager was built with.
func (m *Manager) Engine() *cryptox.Engine { return m.e }

// Register creates a fresh key hierarchy. It returns the server-side record,
// the recovery key text (to be shown exactly once) and the vault key.
func (m *Manager) Register(password []byte, context string) (*Registration, string, *Key, error) {
	salt := m.e.NewSalt()
	mk, err := m.e.DeriveKey(password, salt, context)
	if err != nil {
		return nil, "", nil, err
	}
	defer common.WipeByteArray(mk)

	vk := common.GenerateRandByteArray(cryptox.KeySize)
	encVK, err := m.e.WrapKey(vk, mk)
	if err != nil {
		common.WipeByteArray(vk)
		return nil, "", nil, err
	}

	rkRaw := common.GenerateRandByteArray(cryptox.KeySize)
	recoveryKey := hex.EncodeToString(rkRaw)
	common.WipeByteArray(rkRaw)

	recoverySalt := m.e.NewSalt()
	rmk, err := m.e.DeriveKey([]byte(recoveryKey), recoverySalt, "")
	if err != nil {
		common.WipeByteArray(vk)
		return nil, "", nil, err
	}
	defer common.WipeByteArray(rmk)

	recVK, err := m.e.WrapKey(vk, rmk)
	if err != nil {
		common.WipeByteArray(vk)
		return nil, "", nil, err
	}

	encRK, err := m.e.EncryptString([]byte(recoveryKey), mk)
	if err != nil {
		common.WipeByteArray(vk)
		return nil, "", nil, err
	}

	reg := &Registration{
		Salt:                 salt,
		AuthHash:             m.e.HashForAuth(mk),
		EncryptedVaultKey:    encVK.String(),
		RecoverySalt:         recoverySalt,
		RecoveryVaultKey:     recVK.String(),
		EncryptedRecoveryKey: encRK,
	}
	return reg, recoveryKey, newKey(vk), nil
}

// Master is an unlocked master key. Derive it once per login and reuse it.
type Master struct {
	m        *Manager
	key      *Key
	authHash string
}

// Unlock derives the master key for an existing account.
func (m *Manager) Unlock(password []byte, context, salt string) (*Master, error) {
	mk, err := m.e.DeriveKey(password, salt, context)
	if err != nil {
		return nil, err
	}
	// newKey wipes mk, so hash first.
	authHash := m.e.HashForAuth(mk)
	return &Master{m: m, key: newKey(mk), authHash: authHash}, nil
}

func (ms *Master) AuthHash() string { return ms.authHash }

// OpenVaultKey unwraps the account's vault key.
func (ms *Master) OpenVaultKey(encryptedVaultKey string) (*Key, error) {
	return ms.m.unwrapEnvelope(encryptedVaultKey, ms.key)
}

// RevealRecoveryKey decrypts the stored copy of the recovery key text.
func (ms *Master) RevealRecoveryKey(encryptedRecoveryKey string) (string, error) {
	var out string
	err := ms.key.Use(func(mk []byte) error {
		b, err := ms.m.e.DecryptString(encryptedRecoveryKey, mk)
		if err != nil {
			return err
		}
		out = string(b)
		common.WipeByteArray(b)
		return nil
	})
	return out, err
}

func (ms *Master) Wipe() { ms.key.Wipe() }

// NewSubVault generates a random sub-key and wraps it under the vault key.
func (m *Manager) NewSubVault(vaultKey *Key) (SubVault, *Key, error) {
	sub := common.GenerateRandByteArray(cryptox.KeySize)
	var sv SubVault
	err := vaultKey.Use(func(vk []byte) error {
		env, err := m.e.WrapKey(sub, vk)
		if err != nil {
			return err
		}
		sv = SubVault{
			EncryptedSubKey: hex.EncodeToString(env.Ciphertext),
			IV:              hex.EncodeToString(env.Nonce),
		}
		return nil
	})
	if err != nil {
		common.WipeByteArray(sub)
		return SubVault{}, nil, err
	}
	return sv, newKey(sub), nil
}

// OpenSubVault unwraps a sub-key.
func (m *Manager) OpenSubVault(vaultKey *Key, sv SubVault) (*Key, error) {
	return m.unwrapEnvelope(sv.IV+":"+sv.EncryptedSubKey, vaultKey)
}

// NormalizeRecoveryKey trims and lower-cases user input and checks it is a
// 64 character hex string.
func NormalizeRecoveryKey(s string) (string, error) {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	if len(s) != RecoveryKeyLen {
		return "", fmt.Errorf("%w: recovery key must be %d hex characters", common.ErrorValidation, RecoveryKeyLen)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: recovery key is not hex", common.ErrorValidation)
	}
	return s, nil
}

// OpenWithRecoveryKey unwraps the vault key through the recovery branch.
func (m *Manager) OpenWithRecoveryKey(recoveryKey, recoverySalt, recoveryVaultKey string) (*Key, error) {
	rk, err := NormalizeRecoveryKey(recoveryKey)
	if err != nil {
		return nil, err
	}
	rmk, err := m.e.DeriveKey([]byte(rk), recoverySalt, "")
	if err != nil {
		return nil, err
	}
	rmkKey := newKey(rmk)
	defer rmkKey.Wipe()
	return m.unwrapEnvelope(recoveryVaultKey, rmkKey)
}

// Recover opens the vault key with the recovery key and re-wraps it under a
// master key derived from newPassword. The recovery branch itself is left
// untouched, so the same recovery key keeps working after any number of
// resets.
func (m *Manager) Recover(recoveryKey, recoverySalt, recoveryVaultKey string, newPassword []byte, context string) (*Reset, *Key, error) {
	vk, err := m.OpenWithRecoveryKey(recoveryKey, recoverySalt, recoveryVaultKey)
	if err != nil {
		return nil, nil, err
	}
	rk, _ := NormalizeRecoveryKey(recoveryKey)

	salt := m.e.NewSalt()
	mk, err := m.e.DeriveKey(newPassword, salt, context)
	if err != nil {
		vk.Wipe()
		return nil, nil, err
	}
	defer common.WipeByteArray(mk)

	var encVK cryptox.Envelope
	if err := vk.Use(func(raw []byte) error {
		var werr error
		encVK, werr = m.e.WrapKey(raw, mk)
		return werr
	}); err != nil {
		vk.Wipe()
		return nil, nil, err
	}

	encRK, err := m.e.EncryptString([]byte(rk), mk)
	if err != nil {
		vk.Wipe()
		return nil, nil, err
	}

	return &Reset{
		Salt:                 salt,
		AuthHash:             m.e.HashForAuth(mk),
		EncryptedVaultKey:    encVK.String(),
		EncryptedRecoveryKey: encRK,
	}, vk, nil
}

// BindHardware wraps the vault key with a 32-byte authenticator PRF output.
func (m *Manager) BindHardware(vaultKey *Key, prfOutput []byte) (string, error) {
	if len(prfOutput) != cryptox.KeySize {
		return "", fmt.Errorf("%w: prf output must be %d bytes", common.ErrorValidation, cryptox.KeySize)
	}
	var out string
	err := vaultKey.Use(func(vk []byte) error {
		env, err := m.e.WrapKey(vk, prfOutput)
		if err != nil {
			return err
		}
		out = env.String()
		return nil
	})
	return out, err
}

// UnlockHardware unwraps a hardware-bound vault key. No password is involved;
// possession of the authenticator is the only factor.
func (m *Manager) UnlockHardware(prfOutput []byte, wrappedKey string) (*Key, error) {
	if len(prfOutput) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: prf output must be %d bytes", common.ErrorValidation, cryptox.KeySize)
	}
	w := KeyFromBytes(prfOutput)
	defer w.Wipe()
	return m.unwrapEnvelope(wrappedKey, w)
}

func (m *Manager) unwrapEnvelope(s string, wrapping *Key) (*Key, error) {
	env, err := cryptox.ParseEnvelope(s)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = wrapping.Use(func(w []byte) error {
		var uerr error
		out, uerr = m.e.UnwrapKey(env, w)
		return uerr
	})
	if err != nil {
		return nil, err
	}
	return newKey(out), nil
}
