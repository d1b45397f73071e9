package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/common"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const blindIndexInfo = "securevault blind index v1"

// HashForAuth returns the hex BLAKE2b-256 commitment of the master key. It is
// the only password-derived value the server ever sees.
func (e *Engine) HashForAuth(masterKey []byte) string {
	sum := blake2b.Sum256(masterKey)
	return hex.EncodeToString(sum[:])
}

// BlindIndexKey derives the key used for blind indexes from the vault key.
// The index key never leaves the client.
func (e *Engine) BlindIndexKey(vaultKey []byte) ([]byte, error) {
	if len(vaultKey) != KeySize {
		return nil, fmt.Errorf("%w: vault key must be %d bytes", common.ErrorValidation, KeySize)
	}
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, vaultKey, nil, []byte(blindIndexInfo)), out); err != nil {
		return nil, fmt.Errorf("%w: hkdf: %v", common.ErrorInternal, err)
	}
	return out, nil
}

// BlindIndex returns a deterministic keyed token for the given parts. Parts
// are trimmed and lower-cased, so lookups are case-insensitive.
func (e *Engine) BlindIndex(indexKey []byte, parts ...string) string {
	mac := hmac.New(sha256.New, indexKey)
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
