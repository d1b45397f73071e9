package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the XChaCha20-Poly1305 nonce length.
const NonceSize = chacha20poly1305.NonceSizeX

// Envelope is a wrapped value in its "<nonce-hex>:<ciphertext-hex>" framing.
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

func (e Envelope) String() string {
	return hex.EncodeToString(e.Nonce) + ":" + hex.EncodeToString(e.Ciphertext)
}

// ParseEnvelope decodes the colon framing. Anything malformed is reported as
// ErrorDecryption.
func ParseEnvelope(s string) (Envelope, error) {
	nonceHex, ctHex, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(ctHex, ":") {
		return Envelope{}, fmt.Errorf("%w: bad framing", common.ErrorDecryption)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != NonceSize {
		return Envelope{}, fmt.Errorf("%w: bad nonce", common.ErrorDecryption)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) < chacha20poly1305.Overhead {
		return Envelope{}, fmt.Errorf("%w: bad ciphertext", common.ErrorDecryption)
	}
	return Envelope{Nonce: nonce, Ciphertext: ct}, nil
}

// Sealed is an encrypted payload with the nonce carried separately, as
// stored for items and sub-vault keys.
type Sealed struct {
	Data string `json:"encryptedData"`
	IV   string `json:"iv"`
}

func (s Sealed) envelope() (Envelope, error) {
	if s.Data == "" || s.IV == "" {
		return Envelope{}, fmt.Errorf("%w: empty ciphertext", common.ErrorDecryption)
	}
	return ParseEnvelope(s.IV + ":" + s.Data)
}

// WrapKey encrypts a 32-byte key under a 32-byte wrapping key.
func (e *Engine) WrapKey(payload, key []byte) (Envelope, error) {
	if len(payload) != KeySize {
		return Envelope{}, fmt.Errorf("%w: wrapped key must be %d bytes", common.ErrorValidation, KeySize)
	}
	return e.seal(payload, key)
}

// UnwrapKey reverses WrapKey. On any failure no key material is returned.
func (e *Engine) UnwrapKey(env Envelope, key []byte) ([]byte, error) {
	out, err := e.open(env, key)
	if err != nil {
		return nil, err
	}
	if len(out) != KeySize {
		common.WipeByteArray(out)
		return nil, fmt.Errorf("%w: unwrapped key has wrong size", common.ErrorDecryption)
	}
	return out, nil
}

// EncryptData encrypts an arbitrary UTF-8 payload.
func (e *Engine) EncryptData(plaintext []byte, key []byte) (Sealed, error) {
	env, err := e.seal(plaintext, key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Data: hex.EncodeToString(env.Ciphertext), IV: hex.EncodeToString(env.Nonce)}, nil
}

// DecryptData reverses EncryptData.
func (e *Engine) DecryptData(s Sealed, key []byte) ([]byte, error) {
	env, err := s.envelope()
	if err != nil {
		return nil, err
	}
	return e.open(env, key)
}

// EncryptString is EncryptData returning the single-string envelope framing.
func (e *Engine) EncryptString(plaintext []byte, key []byte) (string, error) {
	env, err := e.seal(plaintext, key)
	if err != nil {
		return "", err
	}
	return env.String(), nil
}

// DecryptString reverses EncryptString.
func (e *Engine) DecryptString(s string, key []byte) ([]byte, error) {
	env, err := ParseEnvelope(s)
	if err != nil {
		return nil, err
	}
	return e.open(env, key)
}

func (e *Engine) seal(plaintext, key []byte) (Envelope, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("%w: nonce: %v", common.ErrorInternal, err)
	}
	return Envelope{Nonce: nonce, Ciphertext: aead.Seal(nil, nonce, plaintext, nil)}, nil
}

func (e *Engine) open(env Envelope, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key", common.ErrorDecryption)
	}
	if len(env.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", common.ErrorDecryption)
	}
	out, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrorDecryption
	}
	return out, nil
}
