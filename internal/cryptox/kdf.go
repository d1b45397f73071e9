// Package cryptox implements the client-side cryptographic core of the vault:
// memory-hard key derivation with optional device binding, XChaCha20-Poly1305
// wrapping of keys and payloads, the server-visible auth commitment and the
// blind index used for equality lookups.
//
// All operations hang off an *Engine obtained from Initialize. There is no
// package-level readiness state.
package cryptox

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/securevault/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

const (
	// KeySize is the size of every symmetric key in the hierarchy.
	KeySize = 32

	// SaltSize is the size of freshly generated salts.
	SaltSize = 16

	// MinSaltSize is the shortest salt DeriveKey accepts.
	MinSaltSize = 16
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// ModerateParams costs a few hundred milliseconds and 256 MiB per derivation.
var ModerateParams = Params{Time: 3, MemoryKiB: 256 * 1024, Threads: 1, KeyLen: KeySize}

// InteractiveParams is a cheaper profile for constrained clients.
var InteractiveParams = Params{Time: 2, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: KeySize}

const (
	minTime      = 1
	minMemoryKiB = 8 * 1024
)

// Validate enforces the parameter floor.
func (p Params) Validate() error {
	if p.Time < minTime {
		return fmt.Errorf("%w: kdf time %d below %d", common.ErrorValidation, p.Time, minTime)
	}
	if p.MemoryKiB < minMemoryKiB {
		return fmt.Errorf("%w: kdf memory %d KiB below %d", common.ErrorValidation, p.MemoryKiB, minMemoryKiB)
	}
	if p.Threads == 0 {
		return fmt.Errorf("%w: kdf threads must be positive", common.ErrorValidation)
	}
	if p.KeyLen != KeySize {
		return fmt.Errorf("%w: kdf key length must be %d", common.ErrorValidation, KeySize)
	}
	return nil
}

// Engine is the capability handle for all cryptographic operations.
// It is immutable and safe for concurrent use.
type Engine struct {
	params Params
}

var engines sync.Map // Params -> *Engine

// Initialize validates params and returns the engine for them. Repeated calls
// with equal params return the same handle.
func Initialize(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e, _ := engines.LoadOrStore(params, &Engine{params: params})
	return e.(*Engine), nil
}

// Params returns the cost parameters the engine derives with.
func (e *Engine) Params() Params { return e.params }

// NewSalt returns SaltSize random bytes, hex encoded.
func (e *Engine) NewSalt() string {
	return hex.EncodeToString(common.GenerateRandByteArray(SaltSize))
}

// DeriveKey derives a 32-byte key from password and the hex encoded salt.
//
// With a non-empty context (a device fingerprint) the password is first mixed
// as BLAKE2b-256(password || context), so the same password yields a different
// key on every device. The result must be wiped by the caller.
func (e *Engine) DeriveKey(password []byte, saltHex string, context string) ([]byte, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not hex", common.ErrorValidation)
	}
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt shorter than %d bytes", common.ErrorValidation, MinSaltSize)
	}

	input := password
	if context != "" {
		mixed := contextInput(password, context)
		defer common.WipeByteArray(mixed)
		input = mixed
	}

	p := e.params
	return argon2.IDKey(input, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen), nil
}

func contextInput(password []byte, context string) []byte {
	buf := make([]byte, 0, len(password)+len(context))
	buf = append(buf, password...)
	buf = append(buf, context...)
	defer common.WipeByteArray(buf)

	sum := blake2b.Sum256(buf)
	return sum[:]
}
