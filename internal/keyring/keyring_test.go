package keyring

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = cryptox.Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLen: 32}

func newManager(t *testing.T) *Manager {
	t.Helper()
	e, err := cryptox.Initialize(testParams)
	require.NoError(t, err)
	return NewManager(e)
}

func mustBytes(t *testing.T, k *Key) []byte {
	t.Helper()
	b, err := k.Bytes()
	require.NoError(t, err)
	return b
}

func TestRegisterThenUnlock(t *testing.T) {
	m := newManager(t)
	reg, rk, vk, err := m.Register([]byte("Tr0ub4dor&3!"), "device-a")
	require.NoError(t, err)

	assert.Len(t, rk, RecoveryKeyLen)
	assert.Len(t, reg.AuthHash, 64)
	assert.NotEmpty(t, reg.Salt)
	assert.NotEqual(t, reg.Salt, reg.RecoverySalt)

	ms, err := m.Unlock([]byte("Tr0ub4dor&3!"), "device-a", reg.Salt)
	require.NoError(t, err)
	assert.Equal(t, reg.AuthHash, ms.AuthHash())

	opened, err := ms.OpenVaultKey(reg.EncryptedVaultKey)
	require.NoError(t, err)
	assert.Equal(t, mustBytes(t, vk), mustBytes(t, opened))

	revealed, err := ms.RevealRecoveryKey(reg.EncryptedRecoveryKey)
	require.NoError(t, err)
	assert.Equal(t, rk, revealed)
}

func TestUnlock_WrongPasswordOrContext(t *testing.T) {
	m := newManager(t)
	reg, _, _, err := m.Register([]byte("correct horse"), "device-a")
	require.NoError(t, err)

	for _, tc := range []struct {
		name, pw, ctx string
	}{
		{"wrong password", "wrong horse", "device-a"},
		{"other device", "correct horse", "device-b"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ms, err := m.Unlock([]byte(tc.pw), tc.ctx, reg.Salt)
			require.NoError(t, err)
			assert.NotEqual(t, reg.AuthHash, ms.AuthHash())
			_, err = ms.OpenVaultKey(reg.EncryptedVaultKey)
			assert.ErrorIs(t, err, common.ErrorDecryption)
		})
	}
}

func TestSubVault_RoundTrip(t *testing.T) {
	m := newManager(t)
	_, _, vk, err := m.Register([]byte("pw"), "")
	require.NoError(t, err)

	sv, sub, err := m.NewSubVault(vk)
	require.NoError(t, err)
	assert.NotEmpty(t, sv.EncryptedSubKey)
	assert.Len(t, sv.IV, cryptox.NonceSize*2)

	opened, err := m.OpenSubVault(vk, sv)
	require.NoError(t, err)
	assert.Equal(t, mustBytes(t, sub), mustBytes(t, opened))

	other := KeyFromBytes(bytes.Repeat([]byte{9}, cryptox.KeySize))
	_, err = m.OpenSubVault(other, sv)
	assert.ErrorIs(t, err, common.ErrorDecryption)
}

func TestRecover_RepeatedResetsKeepVaultKey(t *testing.T) {
	m := newManager(t)
	reg, rk, vk, err := m.Register([]byte("first"), "ctx")
	require.NoError(t, err)
	want := mustBytes(t, vk)

	for i, pw := range []string{"second", "third", "fourth"} {
		// users often paste the key with spaces or upper case
		input := strings.ToUpper(rk[:32]) + " " + rk[32:]
		if i%2 == 0 {
			input = rk
		}
		reset, got, err := m.Recover(input, reg.RecoverySalt, reg.RecoveryVaultKey, []byte(pw), "ctx")
		require.NoError(t, err)
		assert.Equal(t, want, mustBytes(t, got))

		ms, err := m.Unlock([]byte(pw), "ctx", reset.Salt)
		require.NoError(t, err)
		assert.Equal(t, reset.AuthHash, ms.AuthHash())
		opened, err := ms.OpenVaultKey(reset.EncryptedVaultKey)
		require.NoError(t, err)
		assert.Equal(t, want, mustBytes(t, opened))

		revealed, err := ms.RevealRecoveryKey(reset.EncryptedRecoveryKey)
		require.NoError(t, err)
		assert.Equal(t, rk, revealed)
	}
}

func TestRecover_BadRecoveryKey(t *testing.T) {
	m := newManager(t)
	reg, rk, _, err := m.Register([]byte("pw"), "")
	require.NoError(t, err)

	_, _, err = m.Recover("not-hex", reg.RecoverySalt, reg.RecoveryVaultKey, []byte("x"), "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	wrong := strings.Repeat("0", RecoveryKeyLen)
	if wrong == rk {
		wrong = strings.Repeat("1", RecoveryKeyLen)
	}
	_, _, err = m.Recover(wrong, reg.RecoverySalt, reg.RecoveryVaultKey, []byte("x"), "")
	assert.ErrorIs(t, err, common.ErrorDecryption)
}

func TestHardwareBinding(t *testing.T) {
	m := newManager(t)
	_, _, vk, err := m.Register([]byte("pw"), "")
	require.NoError(t, err)

	prf := bytes.Repeat([]byte{0x42}, cryptox.KeySize)
	wrapped, err := m.BindHardware(vk, prf)
	require.NoError(t, err)

	got, err := m.UnlockHardware(prf, wrapped)
	require.NoError(t, err)
	assert.Equal(t, mustBytes(t, vk), mustBytes(t, got))

	_, err = m.UnlockHardware(bytes.Repeat([]byte{0x43}, cryptox.KeySize), wrapped)
	assert.ErrorIs(t, err, common.ErrorDecryption)

	_, err = m.BindHardware(vk, prf[:16])
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = m.UnlockHardware(prf[:16], wrapped)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestKey_WipeAndConcurrentUse(t *testing.T) {
	k := KeyFromBytes(bytes.Repeat([]byte{7}, 32))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := k.Bytes()
			assert.NoError(t, err)
			assert.Len(t, b, 32)
		}()
	}
	wg.Wait()

	k.Wipe()
	k.Wipe()
	assert.True(t, k.Wiped())
	_, err := k.Bytes()
	assert.ErrorIs(t, err, ErrKeyWiped)

	var nilKey *Key
	nilKey.Wipe()
}

func TestKey_SealsSource(t *testing.T) {
	src := bytes.Repeat([]byte{5}, cryptox.KeySize)
	k := KeyFromBytes(src)
	assert.Equal(t, bytes.Repeat([]byte{5}, cryptox.KeySize), src)
	assert.Equal(t, src, mustBytes(t, k))

	raw := bytes.Repeat([]byte{6}, cryptox.KeySize)
	sealed := newKey(raw)
	assert.Equal(t, make([]byte, cryptox.KeySize), raw)
	assert.Equal(t, bytes.Repeat([]byte{6}, cryptox.KeySize), mustBytes(t, sealed))
}

func TestNormalizeRecoveryKey(t *testing.T) {
	rk := strings.Repeat("ab", 32)
	got, err := NormalizeRecoveryKey("  " + strings.ToUpper(rk) + "\n")
	require.NoError(t, err)
	assert.Equal(t, rk, got)

	_, err = NormalizeRecoveryKey(rk[:10])
	assert.ErrorIs(t, err, common.ErrorValidation)
}
