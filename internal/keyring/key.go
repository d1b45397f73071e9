package keyring

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyWiped is returned when a wiped key is used.
var ErrKeyWiped = errors.New("key material wiped")

// Key is an in-memory key handle. The bytes are sealed in a memguard enclave
// and only exist in plaintext inside a locked buffer for the duration of Use.
// Any number of goroutines may use a key concurrently; Wipe waits for them.
type Key struct {
	mu    sync.RWMutex
	enc   *memguard.Enclave
	wiped bool
}

// newKey seals b and wipes it.
func newKey(b []byte) *Key {
	return &Key{enc: memguard.NewEnclave(b)}
}

// KeyFromBytes copies b into a new handle. b is left untouched.
func KeyFromBytes(b []byte) *Key {
	return newKey(append([]byte(nil), b...))
}

// Use calls fn with the raw key bytes. fn must not retain or modify them; the
// buffer is destroyed as soon as fn returns.
func (k *Key) Use(fn func(raw []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.wiped {
		return ErrKeyWiped
	}
	if k.enc == nil {
		return fn(nil)
	}
	buf, err := k.enc.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Bytes returns a copy of the key on the ordinary heap.
func (k *Key) Bytes() ([]byte, error) {
	var out []byte
	err := k.Use(func(raw []byte) error {
		out = append([]byte(nil), raw...)
		return nil
	})
	return out, err
}

// Wipe drops the sealed key. It is safe to call more than once.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enc = nil
	k.wiped = true
}

// Wiped reports whether Wipe has been called.
func (k *Key) Wiped() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.wiped
}
