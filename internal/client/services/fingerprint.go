package services

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"runtime"
	"strings"
)

// Test seams.
var (
	hostnameFn = os.Hostname
	userFn     = func() string {
		if u, err := user.Current(); err == nil {
			return u.Username
		}
		return os.Getenv("USER")
	}
	termFn = func() string { return os.Getenv("TERM") }
)

// Fingerprint identifies this device. It binds key derivation to the
// device and selects the trust token; a change (new hostname, different
// terminal) sends the user through the second factor or recovery.
func Fingerprint() string {
	host, _ := hostnameFn()
	parts := []string{host, runtime.GOOS, runtime.GOARCH, userFn(), termFn()}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
